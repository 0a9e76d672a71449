package services

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// DeriveLogicalName builds the platform logical name for a custom entity:
// the publisher prefix plus the singularized, normalized entity name.
// Examples: ("new", "Orders") -> "new_order", ("new", "Line Items") ->
// "new_lineitem".
func DeriveLogicalName(prefix, entityName string) string {
	return prefix + "_" + inflection.Singular(NormalizeName(entityName))
}

// DeriveAttributeSchemaName builds the schema name for a custom attribute.
func DeriveAttributeSchemaName(prefix, attributeName string) string {
	return prefix + "_" + NormalizeName(attributeName)
}

// DeriveSchemaName builds the unique schema name of a relationship from its
// endpoints' logical names, e.g. ("new", "account", "new_order") ->
// "new_account_order".
func DeriveSchemaName(prefix, referencedLogical, referencingLogical string) string {
	return prefix + "_" + stripPrefix(prefix, referencedLogical) + "_" + stripPrefix(prefix, referencingLogical)
}

// DeriveLookupFieldName builds the default lookup field name on the
// referencing entity, e.g. ("new", "account") -> "new_accountid".
func DeriveLookupFieldName(prefix, referencedLogical string) string {
	return prefix + "_" + stripPrefix(prefix, referencedLogical) + "id"
}

// stripPrefix removes an existing publisher prefix from a logical name so
// derived names never double it.
func stripPrefix(prefix, logicalName string) string {
	return strings.TrimPrefix(logicalName, prefix+"_")
}
