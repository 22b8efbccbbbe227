// Package main implements a wire conformance checker for the composer
// protocol. It runs a deterministic corpus of messages through the
// production codec, derives their transaction ids, and compares the
// resulting envelope digests against a golden manifest. Composers at
// different versions must produce byte-identical envelopes for the same
// message or transfers strand mid-route; the committed manifest is that
// compatibility contract.
//
// Verify the current build against the manifest:
//
//	go run ./test/conformance -golden test/conformance/golden.json
//
// After an intentional wire format change, regenerate it:
//
//	go run ./test/conformance -golden test/conformance/golden.json -write-golden
//
// Exit codes: 0 match, 1 mismatch or self-check failure, 2 fatal error.
package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/omnivault/crosschain-composer/internal/domain/model"
	"github.com/omnivault/crosschain-composer/internal/protocol"
)

const (
	exitMatch    = 0
	exitMismatch = 1
	exitFatal    = 2
)

const (
	corpusHubEid   uint32 = 30101
	corpusSpokeEid uint32 = 30201
)

func main() {
	var (
		goldenFlag  = flag.String("golden", "test/conformance/golden.json", "Golden manifest path")
		writeGolden = flag.Bool("write-golden", false, "Write the manifest for this build instead of comparing")
		fuzzCount   = flag.Int("fuzz-cases", 64, "Number of seeded pseudo-random corpus cases")
		seed        = flag.Int64("seed", 1, "Seed for the pseudo-random corpus cases")
		outputFlag  = flag.String("output", "text", "Output format (text / json)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *outputFlag != "text" && *outputFlag != "json" {
		fmt.Fprintf(os.Stderr, "unknown output format %q\n", *outputFlag)
		os.Exit(exitFatal)
	}
	if *fuzzCount < 0 {
		fmt.Fprintln(os.Stderr, "-fuzz-cases must be >= 0")
		os.Exit(exitFatal)
	}

	corpus, err := buildCorpus(*seed, *fuzzCount)
	if err != nil {
		logger.Error("corpus construction failed", "error", err)
		os.Exit(exitFatal)
	}

	run, selfFailures := runCorpus(corpus, *seed, *fuzzCount)

	if *writeGolden {
		if len(selfFailures) > 0 {
			for _, f := range selfFailures {
				logger.Error("self-check failed", "detail", f)
			}
			logger.Error("refusing to write a golden manifest with self-check failures")
			os.Exit(exitMismatch)
		}
		if err := writeManifest(*goldenFlag, run); err != nil {
			logger.Error("write golden failed", "error", err)
			os.Exit(exitFatal)
		}
		logger.Info("golden manifest written",
			"path", *goldenFlag,
			"cases", len(run.Cases),
			"corpus_digest", run.CorpusDigest,
		)
		os.Exit(exitMatch)
	}

	golden, err := loadGolden(*goldenFlag)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Error("golden manifest not found; generate it with -write-golden", "path", *goldenFlag)
		} else {
			logger.Error("load golden failed", "error", err)
		}
		os.Exit(exitFatal)
	}

	result := compareManifests(run, golden)

	switch *outputFlag {
	case "json":
		if err := printJSONReport(os.Stdout, *goldenFlag, run, selfFailures, result); err != nil {
			logger.Error("json report failed", "error", err)
			os.Exit(exitFatal)
		}
	default:
		printTextReport(os.Stdout, *goldenFlag, run, selfFailures, result)
	}

	if len(selfFailures) > 0 || result.HasMismatch() {
		os.Exit(exitMismatch)
	}
	os.Exit(exitMatch)
}

// conformanceCase is one corpus entry. The transaction id is derived at
// run time from the message content and the case name as sender ref.
type conformanceCase struct {
	Name string
	Msg  model.Message
}

// buildCorpus assembles the fixed boundary cases plus the seeded
// pseudo-random ones. The same seed always yields the same corpus.
func buildCorpus(seed int64, fuzzCount int) ([]conformanceCase, error) {
	cases := fixedCases()
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < fuzzCount; i++ {
		msg, err := fuzzMessage(rng)
		if err != nil {
			return nil, fmt.Errorf("fuzz case %d: %w", i, err)
		}
		cases = append(cases, conformanceCase{
			Name: fmt.Sprintf("fuzz/s%d/%03d", seed, i),
			Msg:  msg,
		})
	}
	return cases, nil
}

// fixedCases covers every message kind at its boundary values.
func fixedCases() []conformanceCase {
	longUser := strings.Repeat("u", model.MaxUserLen)

	holdPayload := mustRecommendationPayload(model.Recommendation{
		RecommendationID:  uuid.MustParse("1f0c9c9e-4a69-4d3b-9f3e-2b6f6f9f1a77"),
		User:              "vault-user-01",
		Action:            model.ActionHold,
		Confidence:        model.MinSyncConfidence,
		ExpectedReturnBps: -250,
	})
	rebalancePayload := mustRecommendationPayload(model.Recommendation{
		RecommendationID:  uuid.MustParse("5b2c1d8e-77af-4c20-8f33-9a41d6c05c14"),
		User:              longUser,
		Action:            model.ActionRebalance,
		Confidence:        100,
		ExpectedReturnBps: 2147483647,
	})

	return []conformanceCase{
		{
			Name: "deposit/minimal",
			Msg: model.Message{
				Kind: model.KindSpokeDeposit, User: "a", Amount: 1,
				SourceEid: corpusSpokeEid, TargetEid: corpusHubEid,
			},
		},
		{
			Name: "deposit/max-user-max-amount",
			Msg: model.Message{
				Kind: model.KindSpokeDeposit, User: longUser, Amount: ^uint64(0),
				SourceEid: corpusSpokeEid, TargetEid: corpusHubEid,
			},
		},
		{
			Name: "withdraw/minimal",
			Msg: model.Message{
				Kind: model.KindSpokeWithdraw, User: "a", Shares: 1,
				SourceEid: corpusSpokeEid, TargetEid: corpusHubEid,
			},
		},
		{
			Name: "withdraw/max-shares",
			Msg: model.Message{
				Kind: model.KindSpokeWithdraw, User: "vault-user-01", Shares: ^uint64(0),
				SourceEid: corpusSpokeEid, TargetEid: corpusHubEid,
			},
		},
		{
			Name: "deposit-ack/round-trip",
			Msg: model.Message{
				Kind: model.KindSpokeDepositAck, User: "vault-user-01",
				Amount: 500_000, Shares: 450_000,
				SourceEid: corpusHubEid, TargetEid: corpusSpokeEid,
			},
		},
		{
			Name: "withdraw-ack/round-trip",
			Msg: model.Message{
				Kind: model.KindSpokeWithdrawAck, User: "vault-user-01",
				Amount: 123_456, Shares: 654_321,
				SourceEid: corpusHubEid, TargetEid: corpusSpokeEid,
			},
		},
		{
			Name: "advisory/hold-at-confidence-floor",
			Msg: model.Message{
				Kind: model.KindAdvisorySyncFromHub, User: "vault-user-01",
				Payload:   holdPayload,
				SourceEid: corpusHubEid, TargetEid: corpusSpokeEid,
			},
		},
		{
			Name: "advisory/rebalance-max-confidence",
			Msg: model.Message{
				Kind: model.KindAdvisorySyncFromHub, User: longUser,
				Payload:   rebalancePayload,
				SourceEid: corpusHubEid, TargetEid: corpusSpokeEid,
			},
		},
	}
}

func mustRecommendationPayload(rec model.Recommendation) []byte {
	payload, err := protocol.EncodeRecommendation(&rec)
	if err != nil {
		panic(fmt.Sprintf("static corpus recommendation: %v", err))
	}
	return payload
}

var fuzzActions = []model.RecommendationAction{
	model.ActionHold,
	model.ActionIncreaseExposure,
	model.ActionReduceExposure,
	model.ActionRebalance,
}

// fuzzMessage builds one valid pseudo-random message. Field choices honor
// the per-kind invariants so the corpus exercises the codec, not the
// validation errors.
func fuzzMessage(rng *rand.Rand) (model.Message, error) {
	kinds := []model.MessageKind{
		model.KindSpokeDeposit,
		model.KindSpokeDepositAck,
		model.KindSpokeWithdraw,
		model.KindSpokeWithdrawAck,
		model.KindAdvisorySyncFromHub,
	}
	kind := kinds[rng.Intn(len(kinds))]

	user := fmt.Sprintf("user-%08x", rng.Uint32())
	if rng.Intn(8) == 0 {
		user = strings.Repeat("f", 1+rng.Intn(model.MaxUserLen))
	}

	msg := model.Message{
		Kind:      kind,
		User:      user,
		SourceEid: 30000 + uint32(rng.Intn(1000)) + 1,
		TargetEid: 31000 + uint32(rng.Intn(1000)) + 1,
	}

	nonZero := func() uint64 {
		v := rng.Uint64()
		if v == 0 {
			v = 1
		}
		return v
	}

	switch kind {
	case model.KindSpokeDeposit:
		msg.Amount = nonZero()
	case model.KindSpokeWithdraw:
		msg.Shares = nonZero()
	case model.KindSpokeDepositAck:
		msg.Amount = rng.Uint64()
		msg.Shares = nonZero()
	case model.KindSpokeWithdrawAck:
		msg.Amount = nonZero()
		msg.Shares = rng.Uint64()
	case model.KindAdvisorySyncFromHub:
		var id uuid.UUID
		binary.BigEndian.PutUint64(id[:8], rng.Uint64())
		binary.BigEndian.PutUint64(id[8:], nonZero())
		rec := model.Recommendation{
			RecommendationID:  id,
			User:              user,
			Action:            fuzzActions[rng.Intn(len(fuzzActions))],
			Confidence:        uint8(rng.Intn(101)),
			ExpectedReturnBps: int32(rng.Intn(20001) - 10000),
		}
		payload, err := protocol.EncodeRecommendation(&rec)
		if err != nil {
			return model.Message{}, fmt.Errorf("encode recommendation: %w", err)
		}
		msg.Payload = payload
	}
	return msg, nil
}

// runCorpus runs every case and assembles the manifest plus any
// self-check failures.
func runCorpus(corpus []conformanceCase, seed int64, fuzzCount int) (*Manifest, []string) {
	var selfFailures []string
	cases := make([]CaseResult, 0, len(corpus))
	for _, c := range corpus {
		res, problems := runCase(c)
		cases = append(cases, res)
		for _, p := range problems {
			selfFailures = append(selfFailures, fmt.Sprintf("%s: %s", c.Name, p))
		}
	}
	return &Manifest{
		FormatVersion:   1,
		EnvelopeVersion: protocol.EnvelopeVersion,
		Seed:            seed,
		FuzzCases:       fuzzCount,
		CorpusDigest:    corpusDigest(cases),
		Cases:           cases,
	}, selfFailures
}

// runCase derives the transaction id, encodes, and checks the codec
// against itself: decode must reproduce the message, re-encode must
// reproduce the bytes.
func runCase(c conformanceCase) (CaseResult, []string) {
	var problems []string

	msg := c.Msg
	msg.TransactionID = protocol.DeriveTransactionID(protocol.TransferIntent{
		Kind:      msg.Kind,
		SourceEid: msg.SourceEid,
		TargetEid: msg.TargetEid,
		User:      msg.User,
		Amount:    msg.Amount,
		Shares:    msg.Shares,
		Payload:   msg.Payload,
		SenderRef: c.Name,
	})

	if err := msg.Validate(); err != nil {
		problems = append(problems, fmt.Sprintf("corpus message invalid: %v", err))
	}

	envelope, err := protocol.Encode(&msg)
	if err != nil {
		return CaseResult{Name: c.Name}, append(problems, fmt.Sprintf("encode: %v", err))
	}

	decoded, err := protocol.Decode(envelope)
	switch {
	case err != nil:
		problems = append(problems, fmt.Sprintf("decode: %v", err))
	case !messagesEqual(&msg, decoded):
		problems = append(problems, "decode round-trip diverged from the original message")
	default:
		reencoded, encErr := protocol.Encode(decoded)
		if encErr != nil {
			problems = append(problems, fmt.Sprintf("re-encode: %v", encErr))
		} else if !bytes.Equal(envelope, reencoded) {
			problems = append(problems, "re-encoded envelope differs from the original bytes")
		}
	}

	if msg.Kind == model.KindAdvisorySyncFromHub && len(problems) == 0 {
		if _, recErr := protocol.DecodeRecommendation(decoded.Payload); recErr != nil {
			problems = append(problems, fmt.Sprintf("recommendation round-trip: %v", recErr))
		}
	}

	digest := sha256.Sum256(envelope)
	return CaseResult{
		Name:           c.Name,
		EnvelopeDigest: hex.EncodeToString(digest[:]),
		TransactionID:  msg.TransactionID.String(),
		EnvelopeLen:    len(envelope),
	}, problems
}

func messagesEqual(a, b *model.Message) bool {
	return a.Kind == b.Kind &&
		a.TransactionID == b.TransactionID &&
		a.User == b.User &&
		a.Amount == b.Amount &&
		a.Shares == b.Shares &&
		a.SourceEid == b.SourceEid &&
		a.TargetEid == b.TargetEid &&
		bytes.Equal(a.Payload, b.Payload)
}

func loadGolden(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse golden manifest: %w", err)
	}
	return &m, nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
