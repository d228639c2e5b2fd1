package main

func isTerminalSyncError(err error) bool {
	return true
}
