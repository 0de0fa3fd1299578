package game

// rankStep is one rung of the rank ladder: the lowest XP that earns the name.
type rankStep struct {
	Threshold int
	Name      string
}

// rankTable is ordered by ascending threshold. A user's rank is the name of
// the highest threshold not exceeding their XP.
var rankTable = []rankStep{
	{0, "Ashborn"},
	{100, "Fog Runner"},
	{300, "Tin Sight"},
	{600, "Brass Deceiver"},
	{1000, "Steel Pusher"},
	{1600, "Iron Puller"},
	{2500, "Atium Shadow"},
	{4000, "Mistborn"},
	{6500, "Lord Mistborn"},
}

// RankForXP returns the rank name earned at the given XP total.
func RankForXP(xp int) string {
	rank := rankTable[0].Name
	for _, step := range rankTable {
		if xp >= step.Threshold {
			rank = step.Name
		} else {
			break
		}
	}
	return rank
}
