package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndClose(t *testing.T) {
	c := NewCollector(CollectorConfig{ID: "rtmp"})
	defer c.Stop()

	c.Register("", "/live/test", "peer")
	require.Len(t, c.Active(), 0)

	c.Register("a", "/live/test", "127.0.0.1:1000")
	c.Register("a", "/live/other", "127.0.0.1:1000")
	c.Register("b", "/live/test", "127.0.0.1:1001")

	active := c.Active()
	require.Len(t, active, 2)
	require.Equal(t, "rtmp", active[0].Collector)
	require.Equal(t, "/live/test", active[0].Reference)

	c.Ingress("a", 1000)
	c.Egress("b", 400)
	c.Egress("b", 100)
	c.Ingress("unknown", 100)
	c.Extra("a", map[string]interface{}{"who": "PUBLISH"})

	for _, s := range c.Active() {
		switch s.ID {
		case "a":
			require.Equal(t, uint64(1000), s.RxBytes)
			require.Equal(t, "PUBLISH", s.Extra["who"])
		case "b":
			require.Equal(t, uint64(500), s.TxBytes)
		}
	}

	require.True(t, c.Close("a"))
	require.False(t, c.Close("a"))

	summary := c.Summary()
	require.Equal(t, uint64(1), summary.CurrentSessions)
	require.Equal(t, uint64(2), summary.MaxSessions)
	require.Equal(t, uint64(2), summary.TotalSessions)
	require.Equal(t, uint64(1000), summary.TotalRxBytes)
	require.Equal(t, uint64(500), summary.TotalTxBytes)
	require.Equal(t, Stats{TotalSessions: 2, TotalRxBytes: 1000, TotalTxBytes: 500}, summary.References["/live/test"])
}

func TestNullCollector(t *testing.T) {
	c := NewNullCollector()

	c.Register("a", "ref", "peer")
	c.Ingress("a", 100)

	require.Len(t, c.Active(), 0)
	require.True(t, c.Close("a"))
	require.Equal(t, Summary{}, c.Summary())
}
