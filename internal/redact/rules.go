package redact

import "regexp"

// Rule pairs a PII category with a compiled pattern. Rule order is match
// priority: earlier rules claim character ranges first and later rules
// cannot take them back.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
}

// DefaultRules returns the fixed, ordered pattern set.
//
// The CREDIT_CARD rule is deliberately broad (13-19 digits with optional
// separators) and runs before PHONE, so a fully qualified international
// phone number that reaches 13 digits is claimed as a card number. There is
// no checksum validation; this is a documented false-positive source.
func DefaultRules() []Rule {
	return []Rule{
		// Credit / debit card numbers
		{CategoryCreditCard, regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)},
		// US SSN, 3-2-4 with separators
		{CategorySSN, regexp.MustCompile(`\b\d{3}[-.\s]\d{2}[-.\s]\d{4}\b`)},
		// Indian Aadhaar, 12 digits with optional space every 4
		{CategoryAadhaar, regexp.MustCompile(`\b\d{4}\s?\d{4}\s?\d{4}\b`)},
		// Indian PAN, AAAAA9999A
		{CategoryPAN, regexp.MustCompile(`\b[A-Z]{5}\d{4}[A-Z]\b`)},
		// Email addresses
		{CategoryEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
		// Phone numbers: optional country code, optional area code, 7-15
		// digits. RE2 has no lookarounds, so the leading boundary is a
		// literal "+" or a word boundary.
		{CategoryPhone, regexp.MustCompile(`(?:\+|\b)(?:\d{1,3}[-.\s]?)?(?:\(?\d{2,5}\)?[-.\s]?)?\d{3,5}[-.\s]?\d{4}\b`)},
		// Reference / case / ticket IDs, PREFIX-DIGITS
		{CategoryReferenceID, regexp.MustCompile(`\b[A-Z]{2,5}-\d{3,10}\b`)},
	}
}
