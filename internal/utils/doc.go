// Package utils provides shared utility functions for the binnacle-store commands.
package utils
