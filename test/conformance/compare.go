package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Manifest is the conformance contract: one digest and transaction id per
// corpus case, plus the corpus-wide digest. Two builds sharing a manifest
// produce byte-identical envelopes for every case in it.
type Manifest struct {
	FormatVersion   int          `json:"format_version"`
	EnvelopeVersion int          `json:"envelope_version"`
	Seed            int64        `json:"seed"`
	FuzzCases       int          `json:"fuzz_cases"`
	CorpusDigest    string       `json:"corpus_digest"`
	Cases           []CaseResult `json:"cases"`
}

// CaseResult captures what one corpus case produced on the wire.
type CaseResult struct {
	Name           string `json:"name"`
	EnvelopeDigest string `json:"envelope_digest"`
	TransactionID  string `json:"transaction_id"`
	EnvelopeLen    int    `json:"envelope_len"`
}

// CompareResult holds the outcome of comparing a run against the golden manifest.
type CompareResult struct {
	Matching  []string        `json:"matching"`
	Missing   []string        `json:"missing"` // in this run but not in the golden
	Extra     []string        `json:"extra"`   // in the golden but not in this run
	Divergent []DivergentCase `json:"divergent"`
}

// DivergentCase records a field-level mismatch between the run and the golden.
type DivergentCase struct {
	Name        string `json:"name"`
	Field       string `json:"field"`
	RunValue    string `json:"run_value"`
	GoldenValue string `json:"golden_value"`
}

// HasMismatch returns true if there are any missing, extra, or divergent cases.
func (r *CompareResult) HasMismatch() bool {
	return len(r.Missing) > 0 || len(r.Extra) > 0 || len(r.Divergent) > 0
}

// corpusDigest folds the per-case results into one digest, order-independent.
func corpusDigest(cases []CaseResult) string {
	lines := make([]string, len(cases))
	for i, c := range cases {
		lines[i] = fmt.Sprintf("%s %s %s %d\n", c.Name, c.EnvelopeDigest, c.TransactionID, c.EnvelopeLen)
	}
	sort.Strings(lines)
	h := sha256.Sum256([]byte(strings.Join(lines, "")))
	return hex.EncodeToString(h[:])
}

// compareManifests compares a run manifest against the golden, keyed on
// case name.
func compareManifests(run, golden *Manifest) CompareResult {
	goldenMap := make(map[string]CaseResult, len(golden.Cases))
	for _, c := range golden.Cases {
		goldenMap[c.Name] = c
	}

	var result CompareResult

	// A changed envelope version makes every per-case digest suspect, so
	// surface it as its own divergence first.
	if run.EnvelopeVersion != golden.EnvelopeVersion {
		result.Divergent = append(result.Divergent, DivergentCase{
			Name:        "(manifest)",
			Field:       "envelope_version",
			RunValue:    fmt.Sprintf("%d", run.EnvelopeVersion),
			GoldenValue: fmt.Sprintf("%d", golden.EnvelopeVersion),
		})
	}

	for _, rc := range run.Cases {
		gc, found := goldenMap[rc.Name]
		if !found {
			result.Missing = append(result.Missing, rc.Name)
			continue
		}
		checkField := func(field, runVal, goldenVal string) {
			if runVal != goldenVal {
				result.Divergent = append(result.Divergent, DivergentCase{
					Name:        rc.Name,
					Field:       field,
					RunValue:    runVal,
					GoldenValue: goldenVal,
				})
			}
		}
		checkField("envelope_digest", rc.EnvelopeDigest, gc.EnvelopeDigest)
		checkField("transaction_id", rc.TransactionID, gc.TransactionID)
		checkField("envelope_len", fmt.Sprintf("%d", rc.EnvelopeLen), fmt.Sprintf("%d", gc.EnvelopeLen))
		if rc.EnvelopeDigest == gc.EnvelopeDigest && rc.TransactionID == gc.TransactionID &&
			rc.EnvelopeLen == gc.EnvelopeLen {
			result.Matching = append(result.Matching, rc.Name)
		}
	}

	runMap := make(map[string]struct{}, len(run.Cases))
	for _, c := range run.Cases {
		runMap[c.Name] = struct{}{}
	}
	for _, c := range golden.Cases {
		if _, found := runMap[c.Name]; !found {
			result.Extra = append(result.Extra, c.Name)
		}
	}

	// Sort for deterministic output
	sort.Strings(result.Matching)
	sort.Strings(result.Missing)
	sort.Strings(result.Extra)
	sort.Slice(result.Divergent, func(i, j int) bool {
		if result.Divergent[i].Name == result.Divergent[j].Name {
			return result.Divergent[i].Field < result.Divergent[j].Field
		}
		return result.Divergent[i].Name < result.Divergent[j].Name
	})

	return result
}

// printTextReport writes a human-readable report to w.
func printTextReport(w io.Writer, goldenPath string, run *Manifest, selfFailures []string, result CompareResult) {
	fmt.Fprintln(w, "=== Wire Conformance Report ===")
	fmt.Fprintf(w, "Envelope version: %d\n", run.EnvelopeVersion)
	fmt.Fprintf(w, "Corpus cases: %d (seed %d, %d fuzz)\n", len(run.Cases), run.Seed, run.FuzzCases)
	fmt.Fprintf(w, "Corpus digest: %s\n", run.CorpusDigest)
	fmt.Fprintf(w, "Golden: %s\n", goldenPath)
	fmt.Fprintf(w, "Self-check failures: %d\n", len(selfFailures))
	fmt.Fprintf(w, "Matching: %d\n", len(result.Matching))
	fmt.Fprintf(w, "Missing: %d\n", len(result.Missing))
	fmt.Fprintf(w, "Extra: %d\n", len(result.Extra))
	fmt.Fprintf(w, "Divergent: %d\n", len(result.Divergent))

	if len(selfFailures) > 0 {
		fmt.Fprintln(w, "\n--- Self-check failures (codec disagrees with itself) ---")
		for _, f := range selfFailures {
			fmt.Fprintf(w, "  %s\n", f)
		}
	}
	if len(result.Missing) > 0 {
		fmt.Fprintln(w, "\n--- Missing (in this run but not in the golden) ---")
		for _, name := range result.Missing {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	if len(result.Extra) > 0 {
		fmt.Fprintln(w, "\n--- Extra (in the golden but not in this run) ---")
		for _, name := range result.Extra {
			fmt.Fprintf(w, "  %s\n", name)
		}
	}
	if len(result.Divergent) > 0 {
		fmt.Fprintln(w, "\n--- Divergent (field mismatches) ---")
		for _, d := range result.Divergent {
			fmt.Fprintf(w, "  %s: %s run=%q golden=%q\n", d.Name, d.Field, d.RunValue, d.GoldenValue)
		}
	}

	fmt.Fprintln(w)
	if len(selfFailures) == 0 && !result.HasMismatch() {
		fmt.Fprintln(w, "Result: MATCH")
	} else {
		fmt.Fprintln(w, "Result: MISMATCH")
	}
}

// printJSONReport writes a JSON report to w.
func printJSONReport(w io.Writer, goldenPath string, run *Manifest, selfFailures []string, result CompareResult) error {
	report := struct {
		EnvelopeVersion   int           `json:"envelope_version"`
		CorpusCases       int           `json:"corpus_cases"`
		CorpusDigest      string        `json:"corpus_digest"`
		Golden            string        `json:"golden"`
		SelfCheckFailures []string      `json:"self_check_failures"`
		Result            string        `json:"result"`
		Compare           CompareResult `json:"compare"`
	}{
		EnvelopeVersion:   run.EnvelopeVersion,
		CorpusCases:       len(run.Cases),
		CorpusDigest:      run.CorpusDigest,
		Golden:            goldenPath,
		SelfCheckFailures: selfFailures,
		Compare:           result,
	}
	if len(selfFailures) == 0 && !result.HasMismatch() {
		report.Result = "MATCH"
	} else {
		report.Result = "MISMATCH"
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
