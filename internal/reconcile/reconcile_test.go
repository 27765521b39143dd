package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Sivendra-Kumar/drec-origin/internal/db"
	"github.com/Sivendra-Kumar/drec-origin/internal/metrics"
	"go.uber.org/zap"
)

type fakeLedger struct {
	certificates []db.Certificate
}

func (f *fakeLedger) CertificatesByGroup(_ context.Context, _ int64) ([]db.Certificate, error) {
	return f.certificates, nil
}

type fakeLogStore struct {
	logs        []db.CertificateIssueLog
	uidQueries  int
	dateQueries int
}

func (f *fakeLogStore) IssueLogsByTransactionUID(_ context.Context, groupID int64, deviceID string, uid string) ([]db.CertificateIssueLog, error) {
	f.uidQueries++
	var out []db.CertificateIssueLog
	for _, l := range f.logs {
		if l.GroupID == groupID && l.DeviceID == deviceID && l.CertificateTransactionUID != nil && *l.CertificateTransactionUID == uid {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLogStore) IssueLogsByDateWindow(_ context.Context, groupID int64, deviceID string, start, end time.Time) ([]db.CertificateIssueLog, error) {
	f.dateQueries++
	var out []db.CertificateIssueLog
	for _, l := range f.logs {
		if l.GroupID == groupID && l.DeviceID == deviceID && WindowMatches(l, start, end) {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeRegistry struct {
	devices map[int64]db.DeviceSnapshot
}

func (f *fakeRegistry) FindDeviceByID(_ context.Context, id int64) (*db.DeviceSnapshot, error) {
	d, ok := f.devices[id]
	if !ok {
		return nil, fmt.Errorf("no device found with id %d", id)
	}
	return &d, nil
}

func newTestEngine(ledger *fakeLedger, logs *fakeLogStore, devices *fakeRegistry) *Engine {
	return NewEngine(ledger, logs, devices, metrics.New(), zap.NewNop())
}

func TestReconcileGroup_BoundaryEqualityIncluded(t *testing.T) {
	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	start := base.Unix()

	ledger := &fakeLedger{certificates: []db.Certificate{{
		ID:                  1,
		GenerationStartTime: start,
		GenerationEndTime:   start + 3600,
		Metadata:            []byte(`{"deviceIds":[10]}`),
	}}}
	logs := &fakeLogStore{logs: []db.CertificateIssueLog{{
		ID:                5,
		GroupID:           4,
		DeviceID:          "Ext-10",
		IssuanceStartDate: base, // equals generation start exactly
		IssuanceEndDate:   base.Add(time.Hour),
		ReadValueWattHour: 1000,
	}}}
	devices := &fakeRegistry{devices: map[int64]db.DeviceSnapshot{10: {ExternalID: "Ext-10"}}}

	out, err := newTestEngine(ledger, logs, devices).ReconcileGroup(context.Background(), 4)
	if err != nil {
		t.Fatalf("ReconcileGroup failed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("Expected 1 certificate, got %d", len(out))
	}
	if len(out[0].PerDeviceCertificateLog) != 1 {
		t.Fatalf("Expected boundary-aligned log to be included, got %d logs", len(out[0].PerDeviceCertificateLog))
	}
	if out[0].PerDeviceCertificateLog[0].ID != 5 {
		t.Errorf("Unexpected log entry: %+v", out[0].PerDeviceCertificateLog[0])
	}
}

func TestReconcileGroup_TransactionUIDPreferred(t *testing.T) {
	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	uid := "txn-abc"

	ledger := &fakeLedger{certificates: []db.Certificate{{
		ID:                  2,
		GenerationStartTime: base.Unix(),
		GenerationEndTime:   base.Unix() + 3600,
		Metadata:            []byte(`{"deviceIds":[10],"certificateTransactionUID":"txn-abc"}`),
	}}}
	logs := &fakeLogStore{logs: []db.CertificateIssueLog{
		{
			ID: 6, GroupID: 4, DeviceID: "Ext-10",
			CertificateTransactionUID: &uid,
			// Deliberately outside the generation window: the UID path
			// must win over date matching.
			IssuanceStartDate: base.Add(48 * time.Hour),
			IssuanceEndDate:   base.Add(49 * time.Hour),
		},
	}}
	devices := &fakeRegistry{devices: map[int64]db.DeviceSnapshot{10: {ExternalID: "Ext-10"}}}

	out, err := newTestEngine(ledger, logs, devices).ReconcileGroup(context.Background(), 4)
	if err != nil {
		t.Fatalf("ReconcileGroup failed: %v", err)
	}
	if logs.uidQueries != 1 || logs.dateQueries != 0 {
		t.Errorf("Expected transaction UID strategy only, got uid=%d date=%d", logs.uidQueries, logs.dateQueries)
	}
	if len(out[0].PerDeviceCertificateLog) != 1 || out[0].PerDeviceCertificateLog[0].ID != 6 {
		t.Errorf("Expected the UID-matched log, got %+v", out[0].PerDeviceCertificateLog)
	}
}

func TestReconcileGroup_MalformedMetadataSkipped(t *testing.T) {
	base := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)

	ledger := &fakeLedger{certificates: []db.Certificate{
		{
			ID:                  1,
			GenerationStartTime: base.Unix(),
			GenerationEndTime:   base.Unix() + 3600,
			Metadata:            []byte(`{not json`),
		},
		{
			ID:                  2,
			GenerationStartTime: base.Unix(),
			GenerationEndTime:   base.Unix() + 3600,
			Metadata:            []byte(`{"deviceIds":[10]}`),
		},
	}}
	logs := &fakeLogStore{logs: []db.CertificateIssueLog{{
		ID: 7, GroupID: 4, DeviceID: "Ext-10",
		IssuanceStartDate: base,
		IssuanceEndDate:   base.Add(time.Hour),
	}}}
	devices := &fakeRegistry{devices: map[int64]db.DeviceSnapshot{10: {ExternalID: "Ext-10"}}}

	out, err := newTestEngine(ledger, logs, devices).ReconcileGroup(context.Background(), 4)
	if err != nil {
		t.Fatalf("Expected no error for malformed metadata, got %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected both certificates in the result, got %d", len(out))
	}
	if len(out[0].PerDeviceCertificateLog) != 0 {
		t.Errorf("Expected no logs for malformed certificate, got %d", len(out[0].PerDeviceCertificateLog))
	}
	if len(out[1].PerDeviceCertificateLog) != 1 {
		t.Errorf("Expected remaining certificate reconciled, got %d logs", len(out[1].PerDeviceCertificateLog))
	}
}

func TestWindowMatches(t *testing.T) {
	start := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	inside := db.CertificateIssueLog{
		IssuanceStartDate: start.Add(10 * time.Minute),
		IssuanceEndDate:   start.Add(20 * time.Minute),
	}
	if !WindowMatches(inside, start, end) {
		t.Error("Expected fully-inside entry to match")
	}

	endOnly := db.CertificateIssueLog{
		IssuanceStartDate: start.Add(-2 * time.Hour),
		IssuanceEndDate:   end, // boundary
	}
	if !WindowMatches(endOnly, start, end) {
		t.Error("Expected entry ending on the boundary to match")
	}

	outside := db.CertificateIssueLog{
		IssuanceStartDate: end.Add(time.Second),
		IssuanceEndDate:   end.Add(time.Hour),
	}
	if WindowMatches(outside, start, end) {
		t.Error("Expected entry past the window to be excluded")
	}
}
