// Package cliconfig resolves pipectl settings.
//
// Settings are layered with the following precedence (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables (PIPECTL_* prefix)
//  3. A .env file in the working directory, or the one named by --env-file
//  4. The collection manifest (--config)
//  5. Default values
//
// A .env file never overrides variables already present in the environment.
package cliconfig
