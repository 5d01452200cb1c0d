// Package config loads collection manifests.
//
// A manifest declares the remote collections a client works with:
//
//	baseURL: https://api.example.com
//	collections:
//	  - name: users
//	    identityField: userId
//	    responseRoot: $.data
//	    params:
//	      limit: "50"
//	  - name: orders
//	    baseURL: https://orders.example.com
//
// Manifests may be YAML (.yaml, .yml), TOML (.toml) or JSON (.json). A
// collection without its own baseURL inherits the manifest's.
package config
