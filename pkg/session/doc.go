/*
Package session keeps one editing engine per blueprint.

The engine's optimistic version token assumes a single writer per blueprint.
Manager enforces that inside a process by handing every caller the same Engine,
and across replicas by holding a lease from a ports.DistributedLocker (the Redis
locker in pkg/adapters/redis) for as long as the session is open.
*/
package session
