// Package seal computes and verifies the tamper-evident hash bound to a
// survey plan's computed facts.
package seal

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/logging"
	"github.com/parcelgrid/survey-engine/internal/metrics"
)

// canonicalFacts fixes the field order and formatting of the hashed payload.
// Changing it invalidates every existing seal.
type canonicalFacts struct {
	ParentParcelArea float64 `json:"parent_parcel_area"`
	SectionCount     int     `json:"section_count"`
	TotalUnitArea    float64 `json:"total_unit_area"`
	GeneratedAt      string  `json:"generated_at"`
}

// Hash returns the lowercase hex SHA-256 digest of the canonical form of facts.
func Hash(facts domain.SealFacts) (string, error) {
	payload, err := json.Marshal(canonicalFacts{
		ParentParcelArea: facts.ParentParcelArea,
		SectionCount:     facts.SectionCount,
		TotalUnitArea:    facts.TotalUnitArea,
		GeneratedAt:      facts.GeneratedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("encode seal facts: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Sealer creates and verifies seals.
type Sealer struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewSealer returns a Sealer using the wall clock.
func NewSealer(logger *slog.Logger, m *metrics.Metrics) *Sealer {
	return &Sealer{logger: logging.OrDiscard(logger), metrics: m, now: time.Now}
}

// WithClock replaces the time source. Intended for tests.
func (s *Sealer) WithClock(now func() time.Time) *Sealer {
	s.now = now
	return s
}

// SealSurveyPlan stamps facts with the generation time (when unset) and
// returns the seal together with the exact facts it was computed from.
// Callers must only seal a plan whose topology validation passed.
func (s *Sealer) SealSurveyPlan(planID string, facts domain.SealFacts) (domain.SealRecord, error) {
	now := s.now().UTC()
	if facts.GeneratedAt.IsZero() {
		facts.GeneratedAt = now
	}
	facts.GeneratedAt = facts.GeneratedAt.UTC()

	h, err := Hash(facts)
	if err != nil {
		return domain.SealRecord{}, err
	}
	s.metrics.ObserveSeal("sealed")
	s.logger.Info("survey plan sealed",
		"plan_id", planID,
		"sections", facts.SectionCount,
		"seal_hash", h,
	)
	return domain.SealRecord{
		PlanID: planID,
		Facts:  facts,
		Seal:   domain.SealResult{SealHash: h, SealedAt: now},
	}, nil
}

// VerifySeal recomputes the hash from the stored facts and compares it with
// expected. The generation timestamp must be the one recorded with the seal.
func (s *Sealer) VerifySeal(facts domain.SealFacts, expected string) domain.SealVerification {
	h, err := Hash(facts)
	if err != nil {
		s.metrics.ObserveSeal("mismatch")
		return domain.SealVerification{Error: err.Error()}
	}
	want := strings.ToLower(strings.TrimSpace(expected))
	if subtle.ConstantTimeCompare([]byte(h), []byte(want)) != 1 {
		s.metrics.ObserveSeal("mismatch")
		s.logger.Warn("seal verification failed", "computed", h, "expected", want)
		return domain.SealVerification{ComputedHash: h, Error: domain.ErrSealMismatch.Message}
	}
	s.metrics.ObserveSeal("verified")
	return domain.SealVerification{IsValid: true, ComputedHash: h}
}

// VerifyRecord verifies a stored seal record against its own facts.
func (s *Sealer) VerifyRecord(rec domain.SealRecord) domain.SealVerification {
	return s.VerifySeal(rec.Facts, rec.Seal.SealHash)
}
