package link

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/kelpdev/kelp/pkg/record"
)

const maxShebangLength = 127

// rewritePrefix replaces every occurrence of placeholder in the file at
// path with newPrefix, in the given mode. Text mode
// does a literal byte substitution; binary mode preserves the on-disk
// length of the matched region, NUL-padding the remainder.
func rewritePrefix(path, placeholder, newPrefix string, mode record.FileMode) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var out []byte
	switch mode {
	case record.FileModeText:
		out = bytes.ReplaceAll(data, []byte(placeholder), []byte(newPrefix))
	case record.FileModeBinary:
		out, err = rewriteBinaryPrefix(data, placeholder, newPrefix, path)
		if err != nil {
			return err
		}
	default:
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, info.Mode().Perm())
}

// rewriteBinaryPrefix finds every `<placeholder><suffix>\x00` run, where
// suffix is any run of non-NUL bytes, and replaces it with
// `<newPrefix><suffix>` right-padded with NUL bytes back out to the
// original matched length. It returns a *PaddingError when newPrefix does
// not fit within the placeholder's reserved space, since the matched
// region's total length is fixed and cannot grow.
func rewriteBinaryPrefix(data []byte, placeholder, newPrefix, path string) ([]byte, error) {
	ph := []byte(placeholder)
	np := []byte(newPrefix)
	if len(np) > len(ph) {
		return nil, &PaddingError{Path: path}
	}

	var out bytes.Buffer
	i := 0
	for {
		idx := bytes.Index(data[i:], ph)
		if idx < 0 {
			out.Write(data[i:])
			break
		}
		start := i + idx
		out.Write(data[i:start])

		end := start + len(ph)
		for end < len(data) && data[end] != 0 {
			end++
		}
		if end >= len(data) {
			// No terminating NUL found; not a placeholder occurrence we can
			// safely rewrite, leave untouched and keep scanning past it.
			out.Write(data[start : start+len(ph)])
			i = start + len(ph)
			continue
		}

		matchLen := end - start + 1 // includes trailing NUL
		suffix := data[start+len(ph) : end]

		out.Write(np)
		out.Write(suffix)
		pad := matchLen - len(np) - len(suffix) - 1
		for j := 0; j < pad; j++ {
			out.WriteByte(0)
		}
		out.WriteByte(0)

		i = end + 1
	}
	return out.Bytes(), nil
}

// normalizeShebang rewrites an overlong `#!` interpreter line to the
// env-indirected form, since the kernel silently truncates shebangs beyond
// a platform limit.
func normalizeShebang(data []byte) []byte {
	if len(data) < 2 || data[0] != '#' || data[1] != '!' {
		return data
	}
	nl := bytes.IndexByte(data, '\n')
	line := data
	if nl >= 0 {
		line = data[:nl]
	}
	if len(line) <= maxShebangLength {
		return data
	}

	interp := line[2:]
	fields := bytes.Fields(interp)
	if len(fields) == 0 {
		return data
	}
	base := basename(string(fields[0]))

	var newLine bytes.Buffer
	newLine.WriteString("#!/usr/bin/env ")
	newLine.WriteString(base)
	for _, f := range fields[1:] {
		newLine.WriteByte(' ')
		newLine.Write(f)
	}

	var out bytes.Buffer
	out.Write(newLine.Bytes())
	if nl >= 0 {
		out.Write(data[nl:])
	}
	return out.Bytes()
}

func basename(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}

const eocdSignature = "PK\x05\x06"

// rewritePyzzerShebang patches the shebang line prepended to a pyzzer
// (zipapp-style) windows launcher, which embeds a regular zip archive
// after a native.exe stub and a `#!`-style interpreter line. The
// End-Of-Central-Directory record's recorded central-directory offset
// assumes no data was prepended, so the gap between where the EOCD says
// the central directory starts and where it actually starts reveals
// exactly how many launcher+shebang bytes precede the real archive
// (grounded on conda's pyzzer entry point handling).
func rewritePyzzerShebang(data []byte, newPrefix string) ([]byte, bool) {
	eocdOffset := bytes.LastIndex(data, []byte(eocdSignature))
	if eocdOffset < 0 || eocdOffset+22 > len(data) {
		return data, false
	}

	cdrSize := binary.LittleEndian.Uint32(data[eocdOffset+12 : eocdOffset+16])
	cdrOffsetField := binary.LittleEndian.Uint32(data[eocdOffset+16 : eocdOffset+20])

	actualCdrStart := eocdOffset - int(cdrSize)
	if actualCdrStart < 0 {
		return data, false
	}
	archiveStart := actualCdrStart - int(cdrOffsetField)
	if archiveStart < 0 || archiveStart > len(data) {
		return data, false
	}

	launcher := data[:archiveStart]
	archive := data[archiveStart:]

	shebangStart := bytes.LastIndex(launcher, []byte("#!"))
	if shebangStart < 0 {
		return data, false
	}

	head := launcher[:shebangStart]
	shebangAndRest := launcher[shebangStart:]
	nl := bytes.IndexByte(shebangAndRest, '\n')
	var shebangLine, rest []byte
	if nl >= 0 {
		shebangLine, rest = shebangAndRest[:nl], shebangAndRest[nl:]
	} else {
		shebangLine, rest = shebangAndRest, nil
	}

	fields := bytes.Fields(shebangLine[2:])
	var newShebang bytes.Buffer
	newShebang.WriteString("#!")
	newShebang.WriteString(newPrefix)
	for _, f := range fields[1:] {
		newShebang.WriteByte(' ')
		newShebang.Write(f)
	}

	var out bytes.Buffer
	out.Write(head)
	out.Write(newShebang.Bytes())
	out.Write(rest)
	out.Write(archive)
	return out.Bytes(), true
}
