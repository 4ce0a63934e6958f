// Package columns maps loosely named spreadsheet headers onto semantic fields.
//
// Each field carries an ordered synonym list. For every synonym, in priority
// order, the resolver first looks for a header equal to it (ignoring case and
// accents) and then for a header containing it as a whole word, so that
// "Monto_Factura" resolves "monto". The first synonym with a hit wins.
package columns

import (
	"regexp"
	"strings"
	"unicode"

	"caat-reconciliation/internal/domain"

	"github.com/schollz/closestmatch"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Synonyms lists candidate header names per semantic field, highest priority first.
type Synonyms map[domain.Field][]string

// Profiles of the source tool, overridable through configuration.
var (
	LedgerSynonyms = Synonyms{
		domain.FieldID:          {"id_transaccion", "id", "transaccion", "numero", "factura"},
		domain.FieldEntity:      {"id_entidad", "entidad", "cliente", "id_cliente", "ruc"},
		domain.FieldDate:        {"fecha", "fecha_emision", "fecha_documento", "date"},
		domain.FieldAmount:      {"monto", "importe", "total", "saldo", "valor", "amount"},
		domain.FieldReference:   {"referencia", "ref", "documento"},
		domain.FieldObservation: {"observacion", "glosa", "detalle", "descripcion"},
	}

	ReceivablesSynonyms = Synonyms{
		domain.FieldEntity:      {"cliente", "id_cliente", "ruc", "identificacion"},
		domain.FieldReference:   {"numerofactura", "numero_factura", "referencia", "documento", "id_transaccion", "id"},
		domain.FieldDate:        {"fecha", "fecha_emision", "fecha_documento"},
		domain.FieldAmount:      {"monto", "importe", "total", "saldo", "valor"},
		domain.FieldObservation: {"observacion", "glosa", "detalle", "descripcion"},
	}

	BankSynonyms = Synonyms{
		domain.FieldDate:      {"fecha", "fec", "date"},
		domain.FieldAmount:    {"monto", "importe", "abono", "deposito", "cr", "credito", "valor"},
		domain.FieldReference: {"referencia", "ref", "descripcion", "concepto", "detalle"},
	}
)

type synonym struct {
	folded  string
	pattern *regexp.Regexp
}

// Resolver resolves headers against a synonym profile. It is safe for concurrent use.
type Resolver struct {
	fields map[domain.Field][]synonym
}

// NewResolver compiles the word-boundary patterns of a synonym profile.
func NewResolver(s Synonyms) *Resolver {
	r := &Resolver{fields: make(map[domain.Field][]synonym, len(s))}
	for field, names := range s {
		for _, name := range names {
			folded := fold(name)
			if folded == "" {
				continue
			}
			r.fields[field] = append(r.fields[field], synonym{
				folded:  folded,
				pattern: regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(folded) + `(?:$|[^\p{L}\p{N}])`),
			})
		}
	}
	return r
}

// Resolve returns the header that best represents field, or false when unresolved.
func (r *Resolver) Resolve(headers []string, field domain.Field) (string, bool) {
	folded := make([]string, len(headers))
	for i, h := range headers {
		folded[i] = fold(h)
	}

	for _, syn := range r.fields[field] {
		for i, h := range folded {
			if h == syn.folded {
				return headers[i], true
			}
		}
		for i, h := range folded {
			if syn.pattern.MatchString(h) {
				return headers[i], true
			}
		}
	}
	return "", false
}

// ResolveAll resolves the required and then the optional fields of a table.
// A header claimed by one field is not offered to the fields after it.
// Unresolved optional fields are left out of the mapping; unresolved required
// fields are reported together in a SchemaError.
func (r *Resolver) ResolveAll(table *domain.Table, required, optional []domain.Field) (domain.ColumnMapping, *domain.SchemaError) {
	mapping := make(domain.ColumnMapping)
	claimed := make(map[string]bool)
	var missing []domain.MissingField

	resolve := func(f domain.Field) bool {
		free := make([]string, 0, len(table.Headers))
		for _, h := range table.Headers {
			if !claimed[h] {
				free = append(free, h)
			}
		}
		h, ok := r.Resolve(free, f)
		if ok {
			mapping[f] = h
			claimed[h] = true
		}
		return ok
	}

	for _, f := range required {
		if mapping.Has(f) || resolve(f) {
			continue
		}
		missing = append(missing, domain.MissingField{
			Collection: table.Name,
			Field:      f,
			Suggestion: r.suggest(table.Headers, f),
		})
	}
	for _, f := range optional {
		if !mapping.Has(f) {
			resolve(f)
		}
	}

	if len(missing) > 0 {
		return nil, &domain.SchemaError{Missing: missing}
	}
	return mapping, nil
}

// suggest returns the header closest to the field's primary synonym. It is
// advisory and never resolves a field on its own.
func (r *Resolver) suggest(headers []string, field domain.Field) string {
	syns := r.fields[field]
	if len(syns) == 0 || len(headers) == 0 {
		return ""
	}

	byFolded := make(map[string]string, len(headers))
	keys := make([]string, 0, len(headers))
	for _, h := range headers {
		f := fold(h)
		if f == "" {
			continue
		}
		if _, seen := byFolded[f]; !seen {
			keys = append(keys, f)
		}
		byFolded[f] = h
	}
	if len(keys) == 0 {
		return ""
	}

	cm := closestmatch.New(keys, []int{2, 3})
	return byFolded[cm.Closest(syns[0].folded)]
}

// fold lower-cases, trims and strips diacritics so "Observación" equals "observacion".
func fold(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
