// Package seatcheck queries the intercity bus reservation site for
// remaining seats on a route.
//
// The [Checker] interface is the capability the worker delegates to.
// [Client] is the HTTP implementation: it primes a session with a GET,
// posts the route search form, and scans the schedule table for the
// requested departure times. A "no seats" outcome is a normal result,
// not an error; errors mean the check itself could not run.
package seatcheck
