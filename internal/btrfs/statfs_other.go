//go:build !linux

package btrfs

// IsBtrfs is always false off Linux.
func IsBtrfs(string) (bool, error) {
	return false, nil
}
