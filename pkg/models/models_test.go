package models_test

import (
	"testing"
	"time"

	"github.com/botforge/botforge/pkg/models"
)

func TestCriticalityRemoteRoundTrip(t *testing.T) {
	for _, c := range []models.Criticality{models.CriticalityLow, models.CriticalityMedium, models.CriticalityHigh} {
		if got := models.CriticalityFromRemote(c.Remote()); got != c {
			t.Errorf("round trip %s: got %s", c, got)
		}
	}
	// Unknown and empty values normalize to medium.
	if got := models.CriticalityFromRemote("urgent"); got != models.CriticalityMedium {
		t.Errorf("got %s, want MEDIUM", got)
	}
	if got := models.Criticality("").Remote(); got != "medium" {
		t.Errorf("got %q, want %q", got, "medium")
	}
}

func TestCompositionModeEncodings(t *testing.T) {
	if got := models.CompositionComposited.Remote(models.EncodingSuffix); got != "composited_canned" {
		t.Errorf("suffix composited = %q", got)
	}
	if got := models.CompositionStrict.Remote(models.EncodingPrefix); got != "canned_strict" {
		t.Errorf("prefix strict = %q", got)
	}
	if got := models.CompositionFluid.Remote(models.EncodingSuffix); got != "fluid" {
		t.Errorf("fluid = %q", got)
	}
}

func TestCompositionModeFromRemoteAcceptsBothWordOrders(t *testing.T) {
	for _, s := range []string{"composited_canned", "canned_composited", "composited"} {
		if got := models.CompositionModeFromRemote(s); got != models.CompositionComposited {
			t.Errorf("%q parsed as %s", s, got)
		}
	}
	for _, s := range []string{"strict_canned", "canned_strict", "strict"} {
		if got := models.CompositionModeFromRemote(s); got != models.CompositionStrict {
			t.Errorf("%q parsed as %s", s, got)
		}
	}
	if got := models.CompositionModeFromRemote("anything else"); got != models.CompositionFluid {
		t.Errorf("fallback parsed as %s", got)
	}
}

func TestBotStateNeedsReconciliation(t *testing.T) {
	if models.StateCreated().NeedsReconciliation() {
		t.Error("CREATED claims to need reconciliation")
	}
	if !models.StatePartiallyCreated("mongo down").NeedsReconciliation() {
		t.Error("PARTIALLY_CREATED does not claim to need reconciliation")
	}
	reconciled := models.StateReconciled(time.Now().UTC())
	if reconciled.NeedsReconciliation() {
		t.Error("reconciled state claims to need reconciliation")
	}
	if reconciled.Status != models.StatusCreated || reconciled.ReconciledAt == nil {
		t.Errorf("reconciled state = %+v", reconciled)
	}
}
