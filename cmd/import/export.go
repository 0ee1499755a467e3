package main

import (
	"bufio"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// openExport opens a plain or zstd-compressed file, sniffing the magic
// number rather than trusting the extension.
func openExport(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReader(f)
	magic, _ := br.Peek(len(zstdMagic))
	if len(magic) == len(zstdMagic) && string(magic) == string(zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &compressedReader{f: f, d: dec}, nil
	}
	return &plainReader{f: f, r: br}, nil
}

type compressedReader struct {
	f *os.File
	d *zstd.Decoder
}

func (c *compressedReader) Read(p []byte) (int, error) { return c.d.Read(p) }
func (c *compressedReader) Close() error {
	c.d.Close()
	return c.f.Close()
}

type plainReader struct {
	f *os.File
	r *bufio.Reader
}

func (p *plainReader) Read(b []byte) (int, error) { return p.r.Read(b) }
func (p *plainReader) Close() error                { return p.f.Close() }
