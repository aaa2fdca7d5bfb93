package postgres

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"agents-admin/internal/xynerrors"
)

// identifierPattern is the fixed character class for any identifier derived
// from user input (pack_ref, env_id) before it is embedded in DDL, per spec §4.1.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

const maxIdentifierLength = 63 // Postgres identifier limit.

// NormalizeSchemaName turns a pack_ref like "core.domain@v1" into a safe,
// quotable schema name "pack_core_domain_v1", validating the result.
func NormalizeSchemaName(packRef string) (string, error) {
	lowered := strings.ToLower(packRef)
	var b strings.Builder
	b.WriteString("pack_")
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	return name, ValidateIdentifier(name)
}

// ValidateIdentifier enforces the fixed character class and length cap of spec §4.1.
func ValidateIdentifier(name string) error {
	if len(name) == 0 || len(name) > maxIdentifierLength {
		return xynerrors.InvalidArgument(xynerrors.KindInvalidIdentifier,
			"identifier %q length must be in [1,%d]", name, maxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return xynerrors.InvalidArgument(xynerrors.KindInvalidIdentifier,
			"identifier %q violates allowed character class", name)
	}
	return nil
}

// QuoteIdentifier safely quotes an already-validated identifier for embedding in DDL.
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// quotedSchemaTable builds "schema"."table" from two already-validated identifiers.
func quotedSchemaTable(schema, table string) string {
	return fmt.Sprintf("%s.%s", QuoteIdentifier(schema), QuoteIdentifier(table))
}
