// Package selector maps logical element names to locator strategies.
//
// Scenarios never refer to DOM selectors directly. They register a name
// ("password field", "submit") once and every step resolves that name
// through a Registry. A Registry belongs to exactly one scenario run.
package selector
