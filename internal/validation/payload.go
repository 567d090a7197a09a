package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/maternar/sync-engine/internal/domain"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// PayloadValidator validates entity payloads against the external schema
// registered for each entity type. The entity-CRUD collaborators own the
// schemas; the engine only enforces them before anything reaches the
// version store.
type PayloadValidator interface {
	Validate(entityType domain.EntityType, data json.RawMessage) error
}

// resultCacheSize bounds the memo of already-validated payload hashes.
// Retried pushes carry identical payloads, so this is hit constantly.
const resultCacheSize = 4096

type payloadValidator struct {
	schemas map[domain.EntityType]*jsonschema.Schema
	seen    *lru.Cache[string, struct{}]
}

// NewPayloadValidator compiles the embedded schema for every known entity type
func NewPayloadValidator() (PayloadValidator, error) {
	compiler := jsonschema.NewCompiler()
	schemas := make(map[domain.EntityType]*jsonschema.Schema, len(domain.AllEntityTypes))

	for _, et := range domain.AllEntityTypes {
		name := fmt.Sprintf("schemas/%s.json", et)
		raw, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema for %s: %w", et, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema for %s: %w", et, err)
		}
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema for %s: %w", et, err)
		}
		schema, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", et, err)
		}
		schemas[et] = schema
	}

	seen, err := lru.New[string, struct{}](resultCacheSize)
	if err != nil {
		return nil, err
	}

	return &payloadValidator{schemas: schemas, seen: seen}, nil
}

// Validate checks data against the schema for entityType
func (v *payloadValidator) Validate(entityType domain.EntityType, data json.RawMessage) error {
	schema, ok := v.schemas[entityType]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownEntityType, entityType)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty payload for %s", domain.ErrValidation, entityType)
	}

	cacheKey := string(entityType) + ":" + hashKey(data)
	if _, ok := v.seen.Get(cacheKey); ok {
		return nil
	}

	value, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", domain.ErrValidation, err)
	}

	if err := schema.Validate(value); err != nil {
		return formatSchemaError(entityType, err)
	}

	v.seen.Add(cacheKey, struct{}{})
	return nil
}

func hashKey(data json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return string(data)
	}
	return buf.String()
}

// formatSchemaError flattens jsonschema's nested output into one line so the
// message can be stored on the queue item and read back by a mobile client
func formatSchemaError(entityType domain.EntityType, err error) error {
	msg := strings.ReplaceAll(err.Error(), "\n", "; ")
	return fmt.Errorf("%w: %s payload: %s", domain.ErrValidation, entityType, msg)
}
