/*
Package tiff reads and writes the subset of TIFF used for stacked microscopy
images: one sample per pixel, contiguous planar configuration, and strips
compressed with no compression, LZW, Deflate, PackBits or Zstandard.

Each directory (IFD) in a file is read as a Frame, a 2d plane that can be decoded
strip by strip into typed values.  Both classic TIFF and BigTIFF files are read;
files are written as classic TIFF.
*/
package tiff
