package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(env map[string]string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range env {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newViper(nil))
	if err != nil {
		t.Fatalf("fromViper: %v", err)
	}

	if got := cfg.Fees.ProcessingFee.StringFixed(2); got != "280.00" {
		t.Errorf("processing fee = %s", got)
	}
	if got := cfg.Fees.ServiceCharge.StringFixed(2); got != "20.00" {
		t.Errorf("service charge = %s", got)
	}
	if got := cfg.Fees.ShippingFee.StringFixed(2); got != "100.00" {
		t.Errorf("shipping fee = %s", got)
	}
	if cfg.Gateway.Provider != "maya" {
		t.Errorf("provider = %s", cfg.Gateway.Provider)
	}
	if cfg.Gateway.Timeout != 15*time.Second {
		t.Errorf("timeout = %s", cfg.Gateway.Timeout)
	}
	if cfg.Kafka.Brokers != nil {
		t.Errorf("expected no brokers, got %v", cfg.Kafka.Brokers)
	}
}

func TestOverridesAndValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{name: "payos provider", env: map[string]string{"GATEWAY_PROVIDER": "PayOS"}},
		{name: "unknown provider", env: map[string]string{"GATEWAY_PROVIDER": "stripe"}, wantErr: true},
		{name: "gcs without bucket", env: map[string]string{"STORAGE_DRIVER": "gcs"}, wantErr: true},
		{name: "gcs with bucket", env: map[string]string{"STORAGE_DRIVER": "gcs", "GCS_BUCKET": "docs"}},
		{name: "bad fee", env: map[string]string{"FEE_SHIPPING": "abc"}, wantErr: true},
		{name: "negative fee", env: map[string]string{"FEE_PROCESSING": "-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fromViper(newViper(tt.env))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKafkaBrokerList(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]string{"KAFKA_BROKERS": "a:9092, b:9092,,"}))
	if err != nil {
		t.Fatalf("fromViper: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Fatalf("brokers = %v", cfg.Kafka.Brokers)
	}
}

func TestRequireServe(t *testing.T) {
	cfg, _ := fromViper(newViper(nil))
	if err := cfg.RequireServe(); err == nil {
		t.Fatal("expected missing POSTGRES_URL error")
	}
	cfg.Database.URL = "postgres://x"
	cfg.Auth.JWTSecret = "s"
	if err := cfg.RequireServe(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
}
