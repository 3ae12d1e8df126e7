package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestCitationFormat(t *testing.T) {
	t.Parallel()

	excerptID := uuid.MustParse("a1b2c3d4-0000-4000-8000-000000000000")
	m := PolicyMatch{
		PolicyName:    "Blue Cross Blue Shield - CA Policy",
		EffectiveDate: "2024-01-01",
		Section:       "Medical Necessity Criteria",
		Page:          2,
		ExcerptID:     excerptID,
	}

	want := "[CITATION: Blue Cross Blue Shield - CA Policy | 2024-01-01 | Medical Necessity Criteria/Page 2 | a1b2c3d4]"
	if got := m.Citation(); got != want {
		t.Errorf("Citation() = %q, want %q", got, want)
	}
}

func TestExcerptIDDeterministic(t *testing.T) {
	t.Parallel()

	policyID := uuid.New()
	if ExcerptID(policyID, 0) != ExcerptID(policyID, 0) {
		t.Error("same policy and ordinal must yield the same excerpt ID")
	}
	if ExcerptID(policyID, 0) == ExcerptID(policyID, 1) {
		t.Error("different ordinals must yield different excerpt IDs")
	}
	if ExcerptID(policyID, 0) == ExcerptID(uuid.New(), 0) {
		t.Error("different policies must yield different excerpt IDs")
	}
}

func TestNormalizeDenialCategory(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want DenialCategory
	}{
		{"medical_necessity", CategoryMedicalNecessity},
		{"Medical_Necessity", CategoryMedicalNecessity},
		{"missing_documentation", CategoryDocumentationMissing},
		{"coding_error", CategoryCodingBilling},
		{"eligibility", CategoryEligibility},
		{"something the model invented", CategoryOther},
		{"", CategoryOther},
	}
	for _, tc := range cases {
		if got := NormalizeDenialCategory(tc.in); got != tc.want {
			t.Errorf("NormalizeDenialCategory(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
