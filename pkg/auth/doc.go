// Package auth manages Claude credentials: the credential record and its
// validity rules, pluggable persistence backends (file, memory, system
// keyring), and the OAuth authorization-code-with-PKCE session manager that
// acquires and renews tokens.
package auth
