package db

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestReadiness_ReadyBodyOmitsError(t *testing.T) {
	body := Readiness{
		Service: "clinpipe",
		Version: "0.1.0",
		Status:  "ready",
		Pool: &PoolStats{
			TotalConns: 4,
			IdleConns:  3,
			MaxConns:   10,
			Healthy:    true,
		},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal readiness: %v", err)
	}
	s := string(raw)

	if strings.Contains(s, "\"error\"") {
		t.Errorf("ready body should omit the error field, got %s", s)
	}
	if !strings.Contains(s, "\"service\":\"clinpipe\"") {
		t.Errorf("body missing service identity: %s", s)
	}
	if !strings.Contains(s, "\"version\":\"0.1.0\"") {
		t.Errorf("body missing version: %s", s)
	}
}

func TestReadiness_UnreachableBodyCarriesError(t *testing.T) {
	body := Readiness{
		Service: "clinpipe",
		Version: "0.1.0",
		Status:  "unreachable",
		Error:   "dial tcp: connection refused",
		Pool:    &PoolStats{MaxConns: 10},
	}

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal readiness: %v", err)
	}

	var decoded Readiness
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal readiness: %v", err)
	}
	if decoded.Status != "unreachable" {
		t.Errorf("expected status unreachable, got %q", decoded.Status)
	}
	if decoded.Error == "" {
		t.Error("expected the probe error to survive the round trip")
	}
	if decoded.Pool == nil || decoded.Pool.Healthy {
		t.Error("expected an unhealthy pool snapshot")
	}
}
