package casedb

var (
	Version   = "v0.4.0"
	GitCommit = "9f3c2a71d64b08e5a1c0f7bd3e92648a5b7d0c41"
)
