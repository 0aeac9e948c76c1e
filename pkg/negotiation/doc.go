/*
Package negotiation ports the dataspace SDK's catalog, contract
negotiation, and endpoint-data-reference primitives behind the Port
interface. HTTPPort is the concrete client: OAuth2 client-credentials
token acquisition wraps the underlying http.Client, and every catalog and
negotiation call to a given counterparty address runs through that
counterparty's own gobreaker.CircuitBreaker so a failing connector cannot
stall callers working against healthy ones. The best-effort transfer
termination sent by DeleteConnection does not go through the breaker.

See pkg/negotiation/negotiationtest for an in-memory Port used by
pkg/discovery's tests.
*/
package negotiation
