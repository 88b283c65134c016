// Package normalisers turns raw vault file content into structural facts.
//
// Extractors implement driven.FactExtractor. They never fail: content that
// cannot be parsed yields empty facts so one bad file cannot stall the
// shadow cache.
package normalisers
