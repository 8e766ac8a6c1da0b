package main

import (
	"fmt"
	"os"
	"strings"

	"vvm"
)

// runVerifyMarkdown implements the Markdown-based regression harness (spec
// §1 "DELIBERATELY OUT OF SCOPE (external collaborators): ... Markdown-
// based regression harness"): the core doesn't know about it, but the
// driver that consumes argv does. Convention: every fenced ```vvm block is
// a script; the fenced block immediately following it (any language tag) is
// its expected display output. A mismatch is reported and the exit code is
// 1 (spec §6 "1 on user error or mismatched markdown tests").
func runVerifyMarkdown(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vvm: %w", err)
	}
	cases, err := extractMarkdownCases(string(src))
	if err != nil {
		return fmt.Errorf("vvm: %w", err)
	}

	failed := 0
	for i, c := range cases {
		session := vvm.NewSession()
		out, err := session.Evaluate(c.script, vvm.ModeScript)
		if err != nil {
			out = err.Error()
		}
		got := strings.TrimRight(out, "\n")
		want := strings.TrimRight(c.expected, "\n")
		if got != want {
			failed++
			fmt.Printf("case %d: mismatch\n  want: %q\n  got:  %q\n", i+1, want, got)
		}
	}
	fmt.Printf("%d/%d cases passed\n", len(cases)-failed, len(cases))
	if failed > 0 {
		os.Exit(1)
	}
	return nil
}

type markdownCase struct {
	script, expected string
}

// extractMarkdownCases walks fenced code blocks (```lang\n...\n```) in
// order, pairing every ```vvm block with the fenced block right after it.
func extractMarkdownCases(doc string) ([]markdownCase, error) {
	lines := strings.Split(doc, "\n")
	var blocks []string
	var langs []string
	var cur *strings.Builder
	var curLang string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if cur == nil {
				curLang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				cur = &strings.Builder{}
				continue
			}
			blocks = append(blocks, cur.String())
			langs = append(langs, curLang)
			cur = nil
			continue
		}
		if cur != nil {
			cur.WriteString(line)
			cur.WriteByte('\n')
		}
	}
	if cur != nil {
		return nil, fmt.Errorf("unterminated fenced code block")
	}

	var cases []markdownCase
	for i := 0; i < len(blocks); i++ {
		if langs[i] != "vvm" {
			continue
		}
		if i+1 >= len(blocks) {
			return nil, fmt.Errorf("```vvm block with no following expected-output block")
		}
		cases = append(cases, markdownCase{script: blocks[i], expected: blocks[i+1]})
		i++
	}
	return cases, nil
}
