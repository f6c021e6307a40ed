package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"pmd-renderer/internal/pmd"
	"pmd-renderer/internal/skeleton"
)

func main() {
	dump := flag.Bool("dump", false, "Deep-dump the decoded model")
	rewrite := flag.Bool("rewrite", false, "Re-encode the model and compare with the file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: inspect [-dump] [-rewrite] model.pmd\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	m, err := pmd.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", path, err)
		os.Exit(1)
	}

	summarize(m)

	if *dump {
		cfg := spew.ConfigState{Indent: "  ", DisableMethods: true, MaxDepth: 4}
		cfg.Dump(m)
	}

	if *rewrite {
		if err := roundTrip(data, m); err != nil {
			fmt.Fprintf(os.Stderr, "Rewrite: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Rewrite: identical")
	}
}

func summarize(m *pmd.Model) {
	fmt.Printf("Name: %q (version %.2f)\n", m.Header.Name, m.Header.Version)
	if c := strings.TrimSpace(m.Header.Comment); c != "" {
		fmt.Printf("Comment: %s\n", strings.ReplaceAll(c, "\n", "\n         "))
	}
	lo, hi := m.Bounds()
	fmt.Printf("Vertices: %d, Indices: %d (%d triangles)\n", len(m.Vertices), len(m.Indices), len(m.Indices)/3)
	fmt.Printf("  BBox: X[%.2f, %.2f] Y[%.2f, %.2f] Z[%.2f, %.2f]\n", lo[0], hi[0], lo[1], hi[1], lo[2], hi[2])

	fmt.Printf("Materials: %d\n", len(m.Materials))
	offset := 0
	for i, mat := range m.Materials {
		base, sphere, mode := mat.Textures()
		fmt.Printf("  [%d] indices %d..%d alpha=%.2f toon=%d", i, offset, offset+int(mat.IndexCount), mat.Alpha, mat.Toon)
		if base != "" {
			fmt.Printf(" texture=%q", base)
		}
		if sphere != "" {
			fmt.Printf(" sphere=%q (%s)", sphere, sphereName(mode))
		}
		fmt.Println()
		offset += int(mat.IndexCount)
	}

	fmt.Printf("Bones: %d\n", len(m.Bones))
	h, err := skeleton.Build(m.Bones)
	if err != nil {
		fmt.Printf("  invalid skeleton: %v\n", err)
		return
	}
	for _, i := range h.Order() {
		n := h.Node(i)
		fmt.Printf("  %s%s [%d] start=(%.2f, %.2f, %.2f)\n",
			strings.Repeat("  ", h.Depth(i)), n.Name, i, n.Start[0], n.Start[1], n.Start[2])
	}
}

func sphereName(mode pmd.SphereMode) string {
	switch mode {
	case pmd.SphereMultiply:
		return "multiply"
	case pmd.SphereAdd:
		return "add"
	}
	return "none"
}

// roundTrip re-encodes m and checks that it reproduces both the file bytes
// and the decoded model.
func roundTrip(orig []byte, m *pmd.Model) error {
	var buf bytes.Buffer
	if err := pmd.Encode(&buf, m); err != nil {
		return err
	}
	again, err := pmd.Decode(buf.Bytes())
	if err != nil {
		return errors.Wrap(err, "decode of rewritten model")
	}
	if !reflect.DeepEqual(m, again) {
		return errors.New("rewritten model decodes differently")
	}
	if !bytes.Equal(orig, buf.Bytes()) {
		n := min(len(orig), buf.Len())
		at := n
		for i := range n {
			if orig[i] != buf.Bytes()[i] {
				at = i
				break
			}
		}
		return errors.Errorf("bytes differ at offset %d (file %d bytes, rewrite %d bytes); string padding is not preserved", at, len(orig), buf.Len())
	}
	return nil
}
