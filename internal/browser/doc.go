// Package browser finds a Chromium-family executable and drives its
// --pack-extension mode.
//
// Locate is a pure first-match-wins probe over an injected LookupFunc.
// Packer is the narrow capability the packaging service depends on;
// Chromium implements it by running the browser as a child process.
package browser
