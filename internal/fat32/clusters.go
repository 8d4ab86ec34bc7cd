package fat32

import "github.com/boljen/go-bitmap"

// ClusterBitmap tracks which data clusters the formatter has claimed. It is
// bookkeeping only — the formatter's on-disk bytes are unaffected by it —
// used to answer diagnostic questions like "how many clusters are free in a
// freshly formatted image" without walking the FAT itself. Grounded on
// dargueta-disko's block Allocator, which uses the same bitmap library for
// the same "one bit per allocation unit" purpose.
type ClusterBitmap struct {
	bits  bitmap.Bitmap
	total int
}

// NewClusterBitmap returns a bitmap covering totalClusters clusters, with
// the fixed root-directory cluster (2) marked allocated, matching the first
// FAT sector the formatter writes (§4.1: "end-of-chain for the root
// directory cluster").
func NewClusterBitmap(totalClusters int) *ClusterBitmap {
	cb := &ClusterBitmap{
		bits:  bitmap.New(totalClusters),
		total: totalClusters,
	}
	if totalClusters > rootDirCluster {
		cb.bits.Set(rootDirCluster, true)
	}
	return cb
}

// TotalClusters returns the number of clusters the bitmap covers.
func (cb *ClusterBitmap) TotalClusters() int { return cb.total }

// FreeClusters returns the number of clusters not marked allocated.
func (cb *ClusterBitmap) FreeClusters() int {
	free := 0
	for i := 0; i < cb.total; i++ {
		if !cb.bits.Get(i) {
			free++
		}
	}
	return free
}

// DataClusterCount computes the number of clusters available for file data
// given the total sector count and the FAT size the formatter derived for
// it, i.e. everything past the reserved sectors and the single FAT.
func DataClusterCount(totalSectors, sectorsPerFAT uint32) int {
	dataSectors := int64(totalSectors) - ReservedSectors - int64(sectorsPerFAT)
	if dataSectors <= 0 {
		return 0
	}
	return int(dataSectors / SectorsPerCluster)
}
