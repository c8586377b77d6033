// quotactl inspects the admission limits table and a principal's live usage.
//
// Usage:
//
//	# Print the loaded limits table
//	quotactl limits
//
//	# Print today's spend and window counts for a principal
//	quotactl usage 42 --op chat
//
//	# Drop a principal's cached role after a directory change
//	quotactl cache flush 42
package main

func main() {
	Execute()
}
