// Package harness runs browser end-to-end scenarios.
//
// A scenario names the elements it touches, stubs the backend endpoints the
// page calls, and lists steps that run strictly in order:
//
//	name: login_requires_email
//	description: "Submitting without an email shows a validation error"
//	selectors:
//	  - name: password
//	    strategy: attribute
//	    value: name=password
//	  - name: submit
//	    value: "button[type='submit']"
//	  - name: email_error
//	    strategy: text
//	    value: Email is required
//	steps:
//	  - navigate: /auth/login
//	  - fill: password
//	    value: TestPassword123
//	  - click: submit
//	  - assert_visible: email_error
//
// # Execution model
//
// Each scenario gets a fresh selector registry, a fresh mock route table and
// its own browser page (a Fixture). The Runner executes steps in order and
// stops at the first failure, recording the failing step together with the
// expected and last observed values. The fixture is closed on every exit
// path.
//
// Assertions never check once. They poll the located element at the
// configured interval until the condition holds or the timeout elapses,
// because the page updates asynchronously after the action that caused it.
//
// # Network policy
//
// Requests issued by page script (fetch, xhr) must match a mock route or a
// passthrough pattern. Anything else is aborted and fails the scenario with
// UNHANDLED_REQUEST instead of silently reaching a live backend. Document and
// asset loads always go to the network.
//
// # Concurrency
//
// Steps within a scenario are sequential. RunAll runs scenarios in parallel;
// they share nothing but the Launcher.
package harness
