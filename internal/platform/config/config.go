package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName   string
	HTTPPort      string
	PostgresDSN   string
	BrokerAddrs   []string
	MarketFeeBps  uint64
	MinListPrice  uint64
	Operator      string
	MarketCustody string
	MarketPaused  bool
	AdminAccount  string
	AdapterID     string
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "treehauz"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("BROKER_ADDRS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	operator := os.Getenv("MARKET_OPERATOR")
	if operator == "" {
		operator = "market-operator"
	}
	custody := os.Getenv("MARKET_CUSTODY")
	if custody == "" {
		custody = "market-custody"
	}

	return Config{
		ServiceName:   service,
		HTTPPort:      port,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		BrokerAddrs:   brokers,
		MarketFeeBps:  envUint("MARKET_FEE_BPS", 250),
		MinListPrice:  envUint("MIN_LISTING_PRICE", 1),
		Operator:      operator,
		MarketCustody: custody,
		MarketPaused:  envBool("MARKET_PAUSED", false),
		AdminAccount:  os.Getenv("MARKET_ADMIN"),
		AdapterID:     os.Getenv("ASSET_ADAPTER_ID"),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envUint(name string, fallback uint64) uint64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return value
}
