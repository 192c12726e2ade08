// Package sim implements the explicit render hardware interface on the
// CPU. It performs real buffer and texture storage, real cross-adapter
// shared-heap simulation, and real triangle rasterization via the
// raster subpackage; the only thing it does not do is talk to an actual
// GPU driver.
package sim
