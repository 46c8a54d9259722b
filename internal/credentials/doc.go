// Package credentials resolves the account used for step updates.
package credentials
