/*
Package kedge documents the kedge module.

This module is CLI-first and ships the kedge command:

	go install github.com/kedgeproxy/kedge/cmd/kedge@latest

Most implementation packages in this repository are internal and are not a
stable public Go API.
*/
package kedge
