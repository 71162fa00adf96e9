// Package redisbus publishes tracker snapshots to Redis so dashboards and
// other processes can follow the aim loop without touching the serial link.
package redisbus
