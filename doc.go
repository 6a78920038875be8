// Package main is the entry point of RRDM, the reference data and business
// change request manager. It hands over to the cobra commands in package app,
// which start the fiber web service, migrate and seed the database and manage
// user accounts.
package main
