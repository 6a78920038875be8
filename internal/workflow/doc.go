// Package workflow implements the BCR approval workflow.
//
// A BCR moves through fourteen fixed phases. Its status is stored as a string,
// either "phase_{n}_in_progress" or "phase_{n}_completed", plus the terminal
// statuses Completed, Closed and Rejected. The phases and statuses themselves
// are BcrConfig rows; this package owns the naming conventions, the transition
// rules and the history written for every change.
//
// Every transition runs inside one database transaction: the status change and
// its activity rows are committed together or not at all.
package workflow
