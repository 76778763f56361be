package infra

import "testing"

func TestPoolConfigSizesForWorkers(t *testing.T) {
	cfg := &Config{DatabaseURL: "postgres://u:p@localhost:5432/app", WorkerConcurrency: 4}

	poolCfg, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if poolCfg.MaxConns != 14 {
		t.Fatalf("MaxConns = %d, want 14", poolCfg.MaxConns)
	}
	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != appName {
		t.Fatalf("application_name = %q", got)
	}
}

func TestPoolConfigHonoursOverrides(t *testing.T) {
	cfg := &Config{
		DatabaseURL:       "postgres://u:p@localhost:5432/app?application_name=ops",
		WorkerConcurrency: 4,
		DBMaxConns:        3,
	}

	poolCfg, err := poolConfig(cfg)
	if err != nil {
		t.Fatalf("poolConfig: %v", err)
	}
	if poolCfg.MaxConns != 3 {
		t.Fatalf("MaxConns = %d, want 3", poolCfg.MaxConns)
	}
	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != "ops" {
		t.Fatalf("application_name = %q, want ops", got)
	}
}

func TestPoolConfigRejectsBadURL(t *testing.T) {
	if _, err := poolConfig(nil); err == nil {
		t.Fatal("nil config accepted")
	}
	if _, err := poolConfig(&Config{DatabaseURL: "postgres://[::1"}); err == nil {
		t.Fatal("malformed url accepted")
	}
}
