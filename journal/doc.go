// Package journal records pipeline runs.
//
// A Journal holds the run lock that keeps two pipeline runs from building
// the same graph at once, and an append-only log of phase events that
// explains how far a failed run got. RedisJournal stores both in Redis;
// NopJournal is used when no Redis URL is configured.
//
// Keys used by RedisJournal, relative to its prefix:
//
//	<prefix>:lock               run id of the lock holder (with TTL)
//	<prefix>:run:<id>:events    list of JSON events, newest first
//	<prefix>:run:<id>           hash with the run summary
//	<prefix>:runs:<id>          pub/sub channel receiving every event
package journal
