// niftihdr validates NIFTI-1 files and dumps their headers.
//
// Usage:
//
//	niftihdr [-q|--quiet] <filename> [<filename> ...]
//
// Options:
//
//	-q, --quiet   Only output errors. Exit code indicates pass/fail.
//	-h, --help    Show this help message.
//	--version     Show version information.
//
// Exit codes:
//
//	0: All files valid
//	1: One or more files invalid
//	2: Error (file not found, etc.)
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/gonum/mat"

	"github.com/voxelmap/go-nifti/nifti"
	"github.com/voxelmap/go-nifti/orient"
)

const version = "1.0.0"

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: niftihdr [-q|--quiet] <filename> [<filename> ...]")
}

func main() {
	quiet := false
	var files []string
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-q", "--quiet":
			quiet = true
		case "-h", "--help":
			usage()
			os.Exit(0)
		case "--version":
			fmt.Printf("niftihdr %s\n", version)
			os.Exit(0)
		default:
			files = append(files, arg)
		}
	}
	if len(files) == 0 {
		usage()
		os.Exit(2)
	}

	allValid := true
	for _, path := range files {
		valid, err := check(path, quiet)
		if err != nil {
			fmt.Fprintf(os.Stderr, "niftihdr: %s: %v\n", path, err)
			os.Exit(2)
		}
		if !valid {
			allValid = false
		}
	}
	if !allValid {
		os.Exit(1)
	}
}

// readHeaderBytes reads the header region of a file, transparently
// decompressing .gz members.
func readHeaderBytes(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	buf := make([]byte, nifti.HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// check reads and validates one header, reporting its contents unless
// quiet. Returns false for a structurally invalid header.
func check(path string, quiet bool) (bool, error) {
	raw, err := readHeaderBytes(path)
	if err != nil {
		return false, err
	}

	h, order, err := nifti.DecodeHeader(raw)
	if err != nil {
		fmt.Printf("%s: INVALID: %v\n", path, err)
		return false, nil
	}
	if err := h.Validate(); err != nil {
		fmt.Printf("%s: INVALID: %v\n", path, err)
		return false, nil
	}
	if quiet {
		return true, nil
	}

	fmt.Printf("%s: valid (%v byte order)\n", path, order)
	fmt.Printf("  shape:     %v\n", h.Shape())
	fmt.Printf("  datatype:  %s (bitpix %d)\n", h.Datatype, h.Bitpix)
	fmt.Printf("  pixdim:    %v\n", h.Pixdim[1:h.NDim()+1])
	fmt.Printf("  scaling:   slope %g inter %g\n", h.SclSlope, h.SclInter)
	fmt.Printf("  qform:     %s  sform: %s\n",
		nifti.XformCode(h.QformCode), nifti.XformCode(h.SformCode))
	if desc := h.DescripString(); desc != "" {
		fmt.Printf("  descrip:   %q\n", desc)
	}

	affine, err := h.Affine()
	if err != nil {
		return false, err
	}
	fmt.Printf("  affine:\n%v\n", mat.Formatted(affine, mat.Prefix("    "), mat.Squeeze()))
	fmt.Printf("  axes:      %s\n", orient.AxCodes(orient.FromAffine(affine)))
	return true, nil
}
