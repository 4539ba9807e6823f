// Package state keeps per-chat conversation sessions behind leases.
// A lease serializes all handling for one chat; sessions of different chats
// never contend on the same lock.
package state
