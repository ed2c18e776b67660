//go:build !mbodebug

package market

const verifyEachApply = false
