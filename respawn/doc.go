/*
Package respawn converges a cloud auto scaling group on its current launch
configuration by replacing outdated instances one at a time.

A run suspends the provider's scaling reflexes, grows the group by one spare
slot (none when running in place), then repeatedly waits for the group to be
healthy and terminates the lexicographically smallest stale instance until
none remain. Original capacity bounds and scaling processes are restored at
the end. A failed run triggers a best-effort cleanup of whatever was changed,
unless configured otherwise.
*/
package respawn
