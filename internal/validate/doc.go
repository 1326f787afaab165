// Package validate holds the stateless input validators for the verification
// engine: email, code, code type, and request metadata (IP, user-agent).
// Every validator returns a sanitized value plus an additive risk score;
// nothing in this package performs I/O.
package validate
