package ambre

import (
	"github.com/pelletier/go-toml/v2"
)

// Unbounded marks MaxAntecedentsLength as having no cap.
const Unbounded = -1

// DefaultSeparator is the reserved byte sequence the Normalizer rejects
// in raw items, matching the convention insert_from_tabular_rows uses
// to build "column<sep>value" items. It is a control character on
// purpose: unlikely to collide with a legitimate item name, unlike a
// printable separator such as "=" or ":" (spec.md §6, §9 Open
// Questions — the source leaves the separator unspecified; we fix it
// here as a dedicated control byte to avoid the false-rejection risk of
// a printable default).
const DefaultSeparator = "\x1f"

// Options are the construction parameters enumerated in spec.md §6.
type Options struct {
	// Consequents declares C: the ordered, non-empty set of target
	// items of interest.
	Consequents []string
	// MaxAntecedentsLength caps |A| per ingested subset. Only the named
	// constant Unbounded (-1) means no cap — the Go zero value (0) is a
	// genuine, if degenerate, finite bound (consequent-only subsets).
	// A struct literal that omits this field silently gets 0, not
	// unbounded; set it explicitly to Unbounded to get "no cap".
	MaxAntecedentsLength int
	// CaseInsensitive folds item case on normalization. Default true:
	// a struct literal that leaves this unset gets the default via
	// New's layering onto DefaultOptions, not Go's bool zero value.
	CaseInsensitive bool
	// ItemAlphabet, when non-empty, enables the alphabet codec over
	// this character set. Empty disables compression.
	ItemAlphabet string
	// NormalizeWhitespace trims and collapses whitespace runs in items
	// prior to casing. Default true (see the CaseInsensitive note: the
	// zero value gets layered over by New, same as the TOML path).
	NormalizeWhitespace bool
	// Separator is the reserved substring insert_from_tabular_rows uses
	// to join column and value; items containing it are rejected.
	// Defaults to DefaultSeparator via New's layering onto
	// DefaultOptions; there is no way to disable the check from a
	// struct literal (an explicit "" is indistinguishable from unset) —
	// use LoadOptionsTOML, whose pointer fields can express that.
	Separator string
}

// DefaultOptions returns Options with the spec's defaults applied,
// consequents still unset.
func DefaultOptions() Options {
	return Options{
		CaseInsensitive:      true,
		NormalizeWhitespace:  true,
		MaxAntecedentsLength: Unbounded,
		Separator:            DefaultSeparator,
	}
}

// withDefaults layers opts onto DefaultOptions for the fields whose Go
// zero value cannot be distinguished from "left unset": the two
// default-true booleans and the separator. This is what lets a plain
// struct literal (every call site in this repo constructs Options this
// way) match spec.md §6's documented defaults, the same way
// LoadOptionsTOML's pointer fields do. MaxAntecedentsLength is
// deliberately not layered here: its zero value (0) is already a
// meaningful, distinct-from-Unbounded bound, so there is nothing to
// disambiguate.
func withDefaults(opts Options) Options {
	d := DefaultOptions()
	if !opts.CaseInsensitive {
		opts.CaseInsensitive = d.CaseInsensitive
	}
	if !opts.NormalizeWhitespace {
		opts.NormalizeWhitespace = d.NormalizeWhitespace
	}
	if opts.Separator == "" {
		opts.Separator = d.Separator
	}
	return opts
}

func (o Options) validate() error {
	if len(o.Consequents) == 0 {
		return newError(KindConfigError, "consequents must be non-empty")
	}
	seen := make(map[string]bool, len(o.Consequents))
	for _, c := range o.Consequents {
		if c == "" {
			return newError(KindConfigError, "consequents must not contain the empty string")
		}
		if seen[c] {
			return newError(KindConfigError, "duplicate consequent %q", c)
		}
		seen[c] = true
	}
	if o.MaxAntecedentsLength != Unbounded && o.MaxAntecedentsLength < 0 {
		return newError(KindConfigError, "max_antecedents_length must be >= 0 or Unbounded")
	}
	return nil
}

// tomlOptions mirrors Options for the TOML config loading path; TOML
// has no notion of Go's Unbounded sentinel so MaxAntecedentsLength is
// pointer-optional there.
type tomlOptions struct {
	Consequents          []string `toml:"consequents"`
	MaxAntecedentsLength *int     `toml:"max_antecedents_length"`
	CaseInsensitive      *bool    `toml:"case_insensitive"`
	ItemAlphabet         string   `toml:"item_alphabet"`
	NormalizeWhitespace  *bool    `toml:"normalize_whitespace"`
	Separator            *string `toml:"separator"`
}

// LoadOptionsTOML parses construction parameters from a TOML document,
// layering declared fields over DefaultOptions. This is the config-file
// path alongside the struct-literal constructor (SPEC_FULL.md's
// ambient-stack expansion): hive.go's own config layer pulls in
// pelletier/go-toml/v2 transitively, and this is the concrete use for
// it in this module.
func LoadOptionsTOML(doc []byte) (Options, error) {
	var t tomlOptions
	if err := toml.Unmarshal(doc, &t); err != nil {
		return Options{}, wrapError(KindConfigError, err, "parsing TOML options")
	}
	opts := DefaultOptions()
	opts.Consequents = t.Consequents
	if t.MaxAntecedentsLength != nil {
		opts.MaxAntecedentsLength = *t.MaxAntecedentsLength
	}
	if t.CaseInsensitive != nil {
		opts.CaseInsensitive = *t.CaseInsensitive
	}
	if t.ItemAlphabet != "" {
		opts.ItemAlphabet = t.ItemAlphabet
	}
	if t.NormalizeWhitespace != nil {
		opts.NormalizeWhitespace = *t.NormalizeWhitespace
	}
	if t.Separator != nil {
		opts.Separator = *t.Separator
	}
	if err := opts.validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
