// Package model contains the shared interfaces of this repository. We
// gather them here to avoid import cycles between the packages that
// implement them and the packages that consume them.
package model
