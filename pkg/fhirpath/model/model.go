// Package model defines the FHIRPath static type lattice and the
// ModelProvider interface through which a host supplies FHIR schema
// knowledge (subtype checks, choice-type resolution) to the compiler and
// evaluator. A BuiltinProvider covering the common FHIR Resource/
// DomainResource hierarchy and primitive-type aliases is supplied as the
// default when no host-specific provider is configured.
package model

import "strings"

// Kind is a node in the FHIRPath type lattice.
type Kind int

const (
	Any Kind = iota
	Boolean
	Integer
	Decimal
	String
	Date
	Time
	DateTime
	Quantity
	Resource
	Choice
	Empty
)

// Type is a fully-formed lattice element: a Kind plus, for Resource, the
// concrete resource-type name, and for Choice, the set of alternatives.
type Type struct {
	Kind         Kind
	ResourceName string
	Alternatives []Type
}

// Cardinality tracks how many items a typed node may produce.
type Cardinality int

const (
	CardinalitySingle Cardinality = iota
	CardinalityOptional
	CardinalityMany
)

// IsSubtypeOf reports whether t is the same type as, or a narrower type
// than, other. Resource subtyping defers to a ModelProvider when one
// supplied the types; this performs only the structural/lattice checks
// available without one (Any absorbs everything, identical Kinds match,
// and a Choice is a subtype of any of its alternatives).
func (t Type) IsSubtypeOf(other Type) bool {
	if other.Kind == Any {
		return true
	}
	if t.Kind == Choice {
		for _, alt := range t.Alternatives {
			if alt.IsSubtypeOf(other) {
				return true
			}
		}
		return false
	}
	if t.Kind != other.Kind {
		return false
	}
	if t.Kind == Resource {
		return IsSubtypeOf(t.ResourceName, other.ResourceName)
	}
	return true
}

// Widen returns the common supertype of t and other, used when unioning
// branches of a typed expression (e.g. the two arms of iif).
func Widen(t, other Type) Type {
	if t.Kind == other.Kind && t.ResourceName == other.ResourceName {
		return t
	}
	return Type{Kind: Any}
}

// Narrow returns t restricted to the types it shares with other, used by
// `as`/`ofType` to compute the static type of a filtered collection. An Any
// operand narrows to the other side; otherwise the narrower of two
// comparable types is kept, and incomparable types narrow to Empty (the
// static prediction that the filter drops everything).
func Narrow(t, other Type) Type {
	if t.Kind == Any {
		return other
	}
	if other.Kind == Any {
		return t
	}
	if t.IsSubtypeOf(other) {
		return t
	}
	if other.IsSubtypeOf(t) {
		return other
	}
	return Type{Kind: Empty}
}

// Provider is the schema collaborator: the only
// interface through which the core consults FHIR-specific knowledge
// (resource type names, choice-type ([x]) resolution, reference follows).
// Implementations are synchronous; the core never assumes I/O concurrency.
type Provider interface {
	// TypeOf returns the declared FHIRPath/FHIR type name for a runtime
	// value shaped like a resource or backbone element.
	TypeOf(value interface{}) string

	// IsSubtypeOf reports whether actualType is actualType itself or a
	// descendant of baseType in the host's type hierarchy.
	IsSubtypeOf(actualType, baseType string) bool

	// ResolveChoice maps a polymorphic field base name (e.g. "value" on a
	// FHIR Observation) to its concrete field name and type (e.g.
	// "valueQuantity", "Quantity"). ok is false when no choice variant is
	// present.
	ResolveChoice(fieldNames []string, baseName string) (fieldName string, typeName string, ok bool)

	// ResolveReference follows a local (contained-resource) reference
	// string to its target value, or returns ok=false when it cannot be
	// resolved from the information available.
	ResolveReference(reference string, root interface{}) (target interface{}, ok bool)
}

// nonDomainResources lists the resource types that inherit directly from
// Resource rather than DomainResource.
var nonDomainResources = map[string]bool{
	"Bundle":     true,
	"Binary":     true,
	"Parameters": true,
}

// IsDomainResource reports whether resourceType inherits from
// DomainResource (i.e. is not one of the handful that attach straight to
// Resource).
func IsDomainResource(resourceType string) bool {
	return !nonDomainResources[resourceType]
}

// IsSubtypeOf is the built-in (model-provider-free) FHIR type hierarchy
// check: direct/case-insensitive name match, or Resource/DomainResource
// base-type matching against anything that looks like a resource type name.
func IsSubtypeOf(actualType, baseType string) bool {
	if actualType == baseType {
		return true
	}
	if strings.EqualFold(actualType, baseType) {
		return true
	}
	if baseType == "Resource" || strings.EqualFold(baseType, "resource") {
		return isPossibleResourceType(actualType)
	}
	if baseType == "DomainResource" || strings.EqualFold(baseType, "domainresource") {
		return isPossibleResourceType(actualType) && IsDomainResource(actualType)
	}
	return false
}

func isPossibleResourceType(typeName string) bool {
	if typeName == "" {
		return false
	}
	if primitiveTypeNames[typeName] {
		return false
	}
	return typeName[0] >= 'A' && typeName[0] <= 'Z'
}

var primitiveTypeNames = map[string]bool{
	"Boolean": true, "String": true, "Integer": true, "Decimal": true,
	"Date": true, "DateTime": true, "Time": true, "Quantity": true,
	"Object": true,
}

// fhirToFHIRPath maps FHIR's lowercase primitive type names to their
// FHIRPath PascalCase equivalents.
var fhirToFHIRPath = map[string]string{
	"boolean": "Boolean", "string": "String", "integer": "Integer", "decimal": "Decimal",
	"date": "Date", "datetime": "DateTime", "time": "Time", "instant": "DateTime",
	"uri": "String", "url": "String", "canonical": "String", "base64binary": "String",
	"code": "String", "id": "String", "markdown": "String", "oid": "String", "uuid": "String",
	"positiveint": "Integer", "unsignedint": "Integer", "integer64": "Integer",
	"quantity": "Quantity", "simplequantity": "Quantity", "age": "Quantity", "count": "Quantity",
	"distance": "Quantity", "duration": "Quantity", "money": "Quantity",
}

// TypeMatches reports whether actualType satisfies a requested typeName,
// accounting for case, the Resource/DomainResource hierarchy, FHIR primitive
// aliases, and the System./FHIR. namespace prefixes used in type specifiers.
func TypeMatches(actualType, typeName string) bool {
	if actualType == typeName {
		return true
	}
	actualLower := strings.ToLower(actualType)
	typeNameLower := strings.ToLower(typeName)
	if actualLower == typeNameLower {
		return true
	}
	if IsSubtypeOf(actualType, typeName) {
		return true
	}
	if fhirPathType, ok := fhirToFHIRPath[typeNameLower]; ok && actualType == fhirPathType {
		return true
	}
	if fhirPathType, ok := fhirToFHIRPath[actualLower]; ok &&
		(fhirPathType == typeName || strings.EqualFold(fhirPathType, typeName)) {
		return true
	}
	if strings.HasPrefix(typeNameLower, "system.") {
		if strings.EqualFold(actualType, typeName[len("system."):]) {
			return true
		}
	}
	if strings.HasPrefix(typeNameLower, "fhir.") {
		if strings.EqualFold(actualType, typeName[len("fhir."):]) {
			return true
		}
	}
	return false
}

// PolymorphicTypeSuffixes enumerates the FHIR type suffixes tried, in
// order, when resolving a value[x]-style polymorphic element name (e.g.
// "value" -> "valueQuantity", "valueString", ...). Used by both the
// built-in field navigation and the default Provider.
var PolymorphicTypeSuffixes = []string{
	"Boolean", "Integer", "Integer64", "Decimal", "String", "Code", "Id", "Uri", "Url", "Canonical",
	"Base64Binary", "Instant", "Date", "DateTime", "Time", "Oid", "Uuid", "Markdown", "PositiveInt", "UnsignedInt",
	"Quantity", "CodeableConcept", "Coding", "Range", "Period", "Ratio", "RatioRange",
	"Identifier", "Reference", "Attachment", "HumanName", "Address", "ContactPoint",
	"Timing", "Signature", "Annotation", "SampledData", "Age", "Distance", "Duration",
	"Count", "Money", "MoneyQuantity", "SimpleQuantity",
	"Meta", "Dosage", "ContactDetail", "Contributor", "DataRequirement", "Expression",
	"ParameterDefinition", "RelatedArtifact", "TriggerDefinition", "UsageContext",
}

// BuiltinProvider is the default Provider used when a caller configures no
// host-specific ModelProvider: it answers IsSubtypeOf purely from the FHIR
// Resource/DomainResource convention above, resolves a choice field by
// trying each of PolymorphicTypeSuffixes in order against the field names
// present, and never resolves references (TypeOf always returns "").
type BuiltinProvider struct{}

func (BuiltinProvider) TypeOf(value interface{}) string { return "" }

func (BuiltinProvider) IsSubtypeOf(actualType, baseType string) bool {
	return IsSubtypeOf(actualType, baseType)
}

func (BuiltinProvider) ResolveChoice(fieldNames []string, baseName string) (string, string, bool) {
	present := make(map[string]bool, len(fieldNames))
	for _, f := range fieldNames {
		present[f] = true
	}
	for _, suffix := range PolymorphicTypeSuffixes {
		candidate := baseName + suffix
		if present[candidate] {
			return candidate, suffix, true
		}
	}
	return "", "", false
}

func (BuiltinProvider) ResolveReference(reference string, root interface{}) (interface{}, bool) {
	return nil, false
}
