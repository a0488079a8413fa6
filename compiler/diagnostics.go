// Copyright 2024 The EDB Authors
// This file is part of EDB.
//
// EDB is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// EDB is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with EDB. If not, see <http://www.gnu.org/licenses/>.

package compiler

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/edb-rs/edb/types"
)

// formatDiagnostics renders every error-severity diagnostic with source
// context read back from the files already dumped under dumpDir.
func formatDiagnostics(diags []types.CompilerDiagnostic, dumpDir string) string {
	var b strings.Builder
	for _, d := range diags {
		if d.Severity != "error" {
			continue
		}
		b.WriteString("\n\nError: ")
		b.WriteString(d.Message)

		if d.SourceLocation != nil {
			loc := d.SourceLocation
			fmt.Fprintf(&b, "\n  --> %s:%d:%d", loc.File, loc.Start, loc.End)

			sourceFile := filepath.Join(dumpDir, sanitizePath(loc.File))
			if ctx, ok := extractCodeContext(sourceFile, loc.Start, loc.End, 5); ok {
				b.WriteString("\n\n")
				b.WriteString(ctx)
			}
		}

		if strings.TrimSpace(d.FormattedMessage) != "" {
			b.WriteString("\n\nCompiler's formatted output:\n")
			b.WriteString(d.FormattedMessage)
		}
	}

	if b.Len() == 0 {
		return "\nNo specific error details available"
	}
	return b.String()
}

func writeDiagnosticsFile(path, report string) error {
	return os.WriteFile(path, []byte(report), 0o644)
}

// extractCodeContext reads filePath and returns contextLines of source
// around the [start, end) byte range, with the error lines marked by a
// caret underline.
func extractCodeContext(filePath string, start, end, contextLines int) (string, bool) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", false
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	pos := 0
	startLine, startCol, endLine := 0, 0, 0
	for i, line := range lines {
		lineStart := pos
		lineEnd := pos + len(line) + 1
		if start >= lineStart && start < lineEnd {
			startLine = i
			startCol = start - lineStart
		}
		if end >= lineStart && end <= lineEnd {
			endLine = i
		}
		pos = lineEnd
	}

	var b strings.Builder
	contextStart := max(0, startLine-contextLines)
	contextEnd := min(len(lines), endLine+contextLines+1)

	for i := contextStart; i < contextEnd; i++ {
		lineNumber := i + 1
		fmt.Fprintf(&b, "  %d | %s\n", lineNumber, lines[i])
		if i == startLine {
			padding := len(fmt.Sprintf("  %d | ", lineNumber))
			underlineLen := 1
			if startLine == endLine && end-start > 0 {
				underlineLen = end - start
			}
			b.WriteString(strings.Repeat(" ", padding+startCol))
			b.WriteString(strings.Repeat("^", underlineLen))
			b.WriteString("\n")
		}
	}
	return b.String(), true
}
