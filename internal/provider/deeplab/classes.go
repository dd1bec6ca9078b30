package deeplab

import "github.com/ironsheep/segment-tools-mcp/internal/segment"

var pascalLabels = []string{
	"background", "aeroplane", "bicycle", "bird", "boat", "bottle", "bus",
	"car", "cat", "chair", "cow", "diningtable", "dog", "horse", "motorbike",
	"person", "pottedplant", "sheep", "sofa", "train", "tvmonitor",
}

var cityscapesClasses = segment.ClassTable{
	{Name: "road", Color: segment.RGB(128, 64, 128)},
	{Name: "sidewalk", Color: segment.RGB(244, 35, 232)},
	{Name: "building", Color: segment.RGB(70, 70, 70)},
	{Name: "wall", Color: segment.RGB(102, 102, 156)},
	{Name: "fence", Color: segment.RGB(190, 153, 153)},
	{Name: "pole", Color: segment.RGB(153, 153, 153)},
	{Name: "traffic light", Color: segment.RGB(250, 170, 30)},
	{Name: "traffic sign", Color: segment.RGB(220, 220, 0)},
	{Name: "vegetation", Color: segment.RGB(107, 142, 35)},
	{Name: "terrain", Color: segment.RGB(152, 251, 152)},
	{Name: "sky", Color: segment.RGB(70, 130, 180)},
	{Name: "person", Color: segment.RGB(220, 20, 60)},
	{Name: "rider", Color: segment.RGB(255, 0, 0)},
	{Name: "car", Color: segment.RGB(0, 0, 142)},
	{Name: "truck", Color: segment.RGB(0, 0, 70)},
	{Name: "bus", Color: segment.RGB(0, 60, 100)},
	{Name: "train", Color: segment.RGB(0, 80, 100)},
	{Name: "motorcycle", Color: segment.RGB(0, 0, 230)},
	{Name: "bicycle", Color: segment.RGB(119, 11, 32)},
}

// id 0 is the unlabeled "other" region of the scene parsing benchmark.
var ade20kLabels = []string{
	"background",
	"wall", "building", "sky", "floor", "tree", "ceiling", "road", "bed",
	"windowpane", "grass", "cabinet", "sidewalk", "person", "earth", "door",
	"table", "mountain", "plant", "curtain", "chair", "car", "water",
	"painting", "sofa", "shelf", "house", "sea", "mirror", "rug", "field",
	"armchair", "seat", "fence", "desk", "rock", "wardrobe", "lamp",
	"bathtub", "railing", "cushion", "base", "box", "column", "signboard",
	"chest of drawers", "counter", "sand", "sink", "skyscraper", "fireplace",
	"refrigerator", "grandstand", "path", "stairs", "runway", "case",
	"pool table", "pillow", "screen door", "stairway", "river", "bridge",
	"bookcase", "blind", "coffee table", "toilet", "flower", "book", "hill",
	"bench", "countertop", "stove", "palm", "kitchen island", "computer",
	"swivel chair", "boat", "bar", "arcade machine", "hovel", "bus", "towel",
	"light", "truck", "tower", "chandelier", "awning", "streetlight", "booth",
	"television receiver", "airplane", "dirt track", "apparel", "pole",
	"land", "bannister", "escalator", "ottoman", "bottle", "buffet",
	"poster", "stage", "van", "ship", "fountain", "conveyer belt", "canopy",
	"washer", "plaything", "swimming pool", "stool", "barrel", "basket",
	"waterfall", "tent", "bag", "minibike", "cradle", "oven", "ball", "food",
	"step", "tank", "trade name", "microwave", "pot", "animal", "bicycle",
	"lake", "dishwasher", "screen", "blanket", "sculpture", "hood", "sconce",
	"vase", "traffic light", "tray", "ashcan", "fan", "pier", "crt screen",
	"plate", "monitor", "bulletin board", "shower", "radiator", "glass",
	"clock", "flag",
}

var (
	pascalClasses = bitColormapTable(pascalLabels)
	ade20kClasses = bitColormapTable(ade20kLabels)
)

// bitColormap returns the color of class id in the standard PASCAL VOC
// palette: the bits of the id are dealt round-robin to R, G and B from the
// most significant bit down.
func bitColormap(id int) segment.Color {
	var r, g, b uint8
	c := id
	for shift := 7; shift >= 0; shift-- {
		r |= uint8(c&1) << shift
		g |= uint8((c>>1)&1) << shift
		b |= uint8((c>>2)&1) << shift
		c >>= 3
	}
	return segment.RGB(r, g, b)
}

func bitColormapTable(labels []string) segment.ClassTable {
	table := make(segment.ClassTable, len(labels))
	for i, name := range labels {
		table[i] = segment.Class{Name: name, Color: bitColormap(i)}
	}
	return table
}
