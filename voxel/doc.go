/*
Package voxel provides types, constants, and functions that have no other dependencies
and can be used by all packages within vstack.  This includes the pixel kinds a volume
can hold, typed voxel buffers and their conversions, 3d geometry, the error taxonomy
shared by voxel sources, leveled logging, and command string handling.
*/
package voxel
