package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valkey-io/verify-provenance/internal/core"
)

func testConfig() *core.ProvenanceConfig {
	return &core.ProvenanceConfig{
		BrandingPairs: []core.BrandPair{{Source: "Redis", Target: "Valkey"}},
		PrefixPairs:   []core.PrefixPair{{Source: "RM_", Target: "VM_"}},
	}
}

func TestNormalizeIdentifierPrefixPair(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "M_context", NormalizeIdentifier("RM_context", cfg))
	assert.Equal(t, "M_context", NormalizeIdentifier("VM_context", cfg))
}

func TestNormalizeIdentifierBrandModule(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "ModuleInit", NormalizeIdentifier("RedisModuleInit", cfg))
	assert.Equal(t, "module_init", NormalizeIdentifier("redismodule_init", cfg))
}

func TestNormalizeIdentifierBarePrefix(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "Context", NormalizeIdentifier("RedisContext", cfg))
}

func TestNormalizeIdentifierUnderscorePrefix(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "connection", NormalizeIdentifier("redis_connection", cfg))
}

func TestNormalizeIdentifierInfixBoundary(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "connection_redis", NormalizeIdentifier("redis_connection_redis", cfg))
	assert.Equal(t, "createContext", NormalizeIdentifier("createRedisContext", cfg))
}

func TestNormalizeIdentifierCrossBrandEquivalence(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, NormalizeIdentifier("RedisLog", cfg), NormalizeIdentifier("ValkeyLog", cfg))
}

func TestNormalizeIdentifierExtraBrandingTermEquivalence(t *testing.T) {
	cfg := &core.ProvenanceConfig{
		BrandingPairs:      []core.BrandPair{{Source: "Redis", Target: "Valkey"}},
		ExtraBrandingTerms: []string{"keydb"},
	}
	got := NormalizeIdentifier("RedisLog", cfg)
	assert.Equal(t, got, NormalizeIdentifier("ValkeyLog", cfg))
	assert.Equal(t, got, NormalizeIdentifier("KeyDBLog", cfg))
}

func TestNormalizeIdentifierNoMatch(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "plainName", NormalizeIdentifier("plainName", cfg))
}

func TestNormalizeIdentifierPreservesExactTermIdentifier(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "Redis", NormalizeIdentifier("Redis", cfg))
}
