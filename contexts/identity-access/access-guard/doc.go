// Package accessguard contains the treehauz implementation of the
// marketplace access and pause guard.
//
// The module keeps domain/application logic decoupled from runtime/platform
// concerns through ports and adapter composition.
package accessguard
